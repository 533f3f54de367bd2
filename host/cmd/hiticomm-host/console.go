package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hiticomm/core"
	"hiticomm/host/board"
	"hiticomm/protocol"
)

var errQuit = errors.New("quit")

// console runs one command line against a board client
type console struct {
	client *board.Client
	out    io.Writer
}

func newConsole(c *board.Client, out io.Writer) *console {
	return &console{client: c, out: out}
}

func (c *console) exec(args []string) error {
	switch args[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp(c.out)
		return nil

	case "id":
		info, err := c.client.Identify()
		if err != nil {
			return err
		}
		printInfo(c.out, info)
		return nil

	case "read":
		if len(args) != 3 {
			return fmt.Errorf("usage: read <TAG> <index>")
		}
		return c.access([]string{args[1] + args[2]})

	case "write":
		if len(args) != 4 {
			return fmt.Errorf("usage: write <TAG> <index> <value>")
		}
		return c.access([]string{args[1] + args[2] + "=" + args[3]})

	case "access":
		if len(args) < 2 {
			return fmt.Errorf("usage: access <slot>... (e.g. DD3 DO5=1)")
		}
		return c.access(args[1:])

	case "eeprom":
		return c.eeprom(args[1:])

	case "broadcast":
		return c.broadcast(args[1:])

	case "state":
		snap, ok := c.client.Latest()
		if !ok {
			return fmt.Errorf("no broadcast received yet (try 'broadcast now')")
		}
		printSnapshot(c.out, snap)
		return nil

	case "stats":
		t := c.client.Transport()
		fmt.Fprintf(c.out, "rejected lines: %d\noverflows: %d\nlost parts: %d\n", t.Rejected(), t.Overflows(), c.client.LostParts())
		return nil
	}
	return fmt.Errorf("unknown command: %s (type 'help' for available commands)", args[0])
}

// parseSlot reads TAGindex for a read or TAGindex=value for a write
func parseSlot(text string) (board.Slot, error) {
	ref, value, write := strings.Cut(text, "=")
	if len(ref) < 3 {
		return board.Slot{}, fmt.Errorf("bad slot %q", text)
	}
	class, ok := core.LookupClass([]byte(strings.ToUpper(ref[:2])))
	if !ok {
		return board.Slot{}, fmt.Errorf("unknown register tag %q", ref[:2])
	}
	index, err := strconv.Atoi(ref[2:])
	if err != nil || index < 0 {
		return board.Slot{}, fmt.Errorf("bad index in %q", text)
	}
	if !write {
		return board.ReadSlot(class, index), nil
	}
	// console values are decimal whatever the wire format
	v, ok := core.ParseValue(protocol.UseInt, class.Kind(), []byte(value))
	if !ok {
		return board.Slot{}, fmt.Errorf("bad %s value %q", class, value)
	}
	return board.WriteSlot(class, index, v), nil
}

func (c *console) access(refs []string) error {
	slots := make([]board.Slot, 0, len(refs))
	for _, s := range refs {
		slot, err := parseSlot(s)
		if err != nil {
			return err
		}
		slots = append(slots, slot)
	}
	results, err := c.client.Access(slots...)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(c.out, "%s%d: error %v\n", r.Class, r.Index, r.Err)
			continue
		}
		fmt.Fprintf(c.out, "%s%d = %s\n", r.Class, r.Index, formatValue(r.Value))
	}
	return nil
}

func (c *console) eeprom(args []string) error {
	const usage = "usage: eeprom read <addr> | eeprom write <addr> <value> | eeprom dump <start> <qty>"
	if len(args) < 2 {
		return fmt.Errorf(usage)
	}
	nums := make([]int, len(args)-1)
	for i, a := range args[1:] {
		n, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return fmt.Errorf("bad number %q", a)
		}
		nums[i] = int(n)
	}
	if nums[0] < 0 || nums[0] > 0xFFFF {
		return fmt.Errorf("address %d out of range", nums[0])
	}
	addr := uint16(nums[0])

	switch {
	case args[0] == "read" && len(nums) == 1:
		v, err := c.client.ReadEEPROM(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "[%d] = %d (0x%02X)\n", addr, v, v)
	case args[0] == "write" && len(nums) == 2:
		if nums[1] < 0 || nums[1] > 0xFF {
			return fmt.Errorf("value %d does not fit a byte", nums[1])
		}
		v, err := c.client.WriteEEPROM(addr, byte(nums[1]))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "[%d] = %d (0x%02X)\n", addr, v, v)
	case args[0] == "dump" && len(nums) == 2:
		data, err := c.client.DumpEEPROM(addr, nums[1])
		if err != nil {
			return err
		}
		hexDump(c.out, int(addr), data)
	default:
		return fmt.Errorf(usage)
	}
	return nil
}

func (c *console) broadcast(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: broadcast on|off|now")
	}
	switch args[0] {
	case "on", "off":
		return c.client.EnableBroadcast(args[0] == "on")
	case "now":
		snap, err := c.client.Broadcast()
		if err != nil {
			return err
		}
		printSnapshot(c.out, snap)
		return nil
	}
	return fmt.Errorf("usage: broadcast on|off|now")
}

func formatValue(v core.Value) string {
	switch v.Kind {
	case core.KindBool:
		if v.Bool() {
			return "1"
		}
		return "0"
	case core.KindFloat:
		return strconv.FormatFloat(float64(v.Float), 'f', protocol.FloatDecimals, 32)
	case core.KindString:
		return strconv.Quote(v.Text)
	}
	return strconv.FormatUint(uint64(v.Bits), 10)
}

func printInfo(w io.Writer, info *board.Info) {
	fmt.Fprintf(w, "\n=== Board %d ===\n", info.ID)
	fmt.Fprintf(w, "Library version: %d\n", info.Version)
	fmt.Fprintf(w, "Code: %s %s\n", info.CodeName, info.CodeVersion)
	fmt.Fprintf(w, "Wire format: %s\n", info.Format)
	fmt.Fprintf(w, "EEPROM: %d bytes\n", info.EEPROMSize)
	fmt.Fprintln(w, "Registers:")
	for _, c := range []core.Class{
		core.ClassDigitalInput,
		core.ClassAnalogInput,
		core.ClassPWM,
		core.ClassDAC,
		core.ClassServo,
		core.ClassDigitalData,
		core.ClassAnalogData,
	} {
		fmt.Fprintf(w, "  %s %d\n", c, info.Count(c))
	}
	fmt.Fprintln(w)
}

func printSnapshot(w io.Writer, s board.Snapshot) {
	fmt.Fprintf(w, "cycle %d, %d parts, received %s\n", s.ID, s.Parts, s.Received.Format("15:04:05.000"))
	bits := func(tag string, v []bool) {
		if len(v) == 0 {
			return
		}
		var b strings.Builder
		for _, on := range v {
			if on {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		fmt.Fprintf(w, "  %s %s\n", tag, b.String())
	}
	bits("PM", s.PinModes)
	bits("DI", s.DigitalInputs)
	bits("DO", s.DigitalOutputs)
	bits("DD", s.DigitalData)
	if len(s.AnalogInputs) > 0 {
		fmt.Fprintf(w, "  AI %v\n", s.AnalogInputs)
	}
	if len(s.PWM) > 0 {
		fmt.Fprintf(w, "  PW %v\n", s.PWM)
	}
	if len(s.DAC) > 0 {
		fmt.Fprintf(w, "  DA %v\n", s.DAC)
	}
	if len(s.Servos) > 0 {
		fmt.Fprintf(w, "  SV %v\n", s.Servos)
	}
	if len(s.AnalogData) > 0 {
		fmt.Fprintf(w, "  AD %v\n", s.AnalogData)
	}
	fmt.Fprintf(w, "  ST %q\n", s.Text)
}

func hexDump(w io.Writer, base int, data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(w, "%04X:", base+off)
		for _, b := range data[off:end] {
			fmt.Fprintf(w, " %02X", b)
		}
		fmt.Fprintln(w)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "\nAvailable commands:")
	fmt.Fprintln(w, "  help                       - Show this help message")
	fmt.Fprintln(w, "  id                         - Query the board identity (B)")
	fmt.Fprintln(w, "  read <TAG> <index>         - Read one register (A)")
	fmt.Fprintln(w, "  write <TAG> <index> <val>  - Write one register and read it back (A)")
	fmt.Fprintln(w, "  access <slot>...           - Up to 4 slots: DD3 reads, DO5=1 writes (A)")
	fmt.Fprintln(w, "  eeprom read <addr>         - Read one EEPROM byte (E)")
	fmt.Fprintln(w, "  eeprom write <addr> <val>  - Write one EEPROM byte (E)")
	fmt.Fprintln(w, "  eeprom dump <start> <qty>  - Read an EEPROM range (EC)")
	fmt.Fprintln(w, "  broadcast on|off|now       - Periodic broadcast, or one full cycle (X)")
	fmt.Fprintln(w, "  state                      - Print the last broadcast snapshot")
	fmt.Fprintln(w, "  stats                      - Link counters")
	fmt.Fprintln(w, "  quit/exit/q                - Exit the program")
	fmt.Fprintln(w, "\nTags: DI DO PM DD AI PW DA AD SV ST")
	fmt.Fprintln(w)
}
