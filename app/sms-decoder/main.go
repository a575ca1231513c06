// sms-decoder decodes short_message octets captured in Wireshark or SMSC logs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/coding"
)

func main() {
	p, err := ProcessCMDLine(os.Args[1:])
	if err != nil {
		cli.Fail("Error: %v\n", err)
		cli.Hint("Use -h for usage information\n")
		os.Exit(1)
	}
	if p.list {
		listEncodings()
		return
	}

	b, err := hexToBytes(p.hex)
	if err != nil {
		cli.Exitf("%v", err)
	}

	switch {
	case p.all:
		displayAll(p.hex, b, decodeWith(b, textSchemes))

	case p.dataCoding != "":
		dc, err := parseDataCoding(p.dataCoding)
		if err != nil {
			cli.Exitf("%v", err)
		}
		r, err := decodeDataCoding(b, dc)
		if err != nil {
			cli.Exitf("%v", err)
		}
		display(p.hex, b, r)

	case p.encoding != "":
		s, err := textScheme(p.encoding)
		if err != nil {
			cli.Exitf("%v", err)
		}
		r := decodeWith(b, []*coding.Scheme{s})[0]
		if r.Err != nil {
			cli.Exitf("Failed to decode with %s encoding: %v", strings.ToUpper(s.Name), r.Err)
		}
		display(p.hex, b, r)

	default:
		r, ok := detect(b)
		if !ok {
			cli.Exitf("Could not decode message with any supported encoding")
		}
		display(p.hex, b, r)
	}
}

func display(in string, b []byte, r Result) {
	line := strings.Repeat("=", 50)
	fmt.Println()
	cli.Title("SMS Decoder Results")
	fmt.Println(line)
	cli.Info("Input (hex): %s\n", in)
	cli.Info("Raw bytes: % X\n", b)
	cli.Info("Length: %d bytes\n", len(b))
	cli.Info("Encoding: %s (data_coding=0x%02X)\n", strings.ToUpper(r.Scheme.Name), r.Scheme.DataCoding)
	cli.Info("Description: %s\n", r.Scheme.Description)

	fmt.Println()
	cli.Success("Decoded text (raw): %q\n", r.Text)
	cli.Success("Decoded text (display): %s\n", r.Text)
	fmt.Println(line)
}

func displayAll(in string, b []byte, list []Result) {
	fmt.Println()
	cli.Title("SMS Decoder - All Encodings")
	fmt.Println(strings.Repeat("=", 70))
	cli.Info("Input (hex): %s\n", in)
	cli.Info("Raw bytes: % X\n", b)
	cli.Info("Length: %d bytes\n", len(b))

	for _, r := range list {
		fmt.Println()
		cli.Warn("--- %s (data_coding=0x%02X) ---\n", strings.ToUpper(r.Scheme.Name), r.Scheme.DataCoding)
		cli.Info("Description: %s\n", r.Scheme.Description)
		if r.OK() {
			cli.Success("Success: %q\n", r.Text)
			cli.Success("Display: %s\n", r.Text)
		} else {
			cli.Fail("Failed to decode\n")
		}
	}
	fmt.Println()
	cli.Note("%s\n", strings.Repeat("=", 70))
}

func listEncodings() {
	cli.Title("Supported Encodings")
	fmt.Println(strings.Repeat("=", 50))
	for _, s := range textSchemes {
		cli.Info("%-8s", strings.ToUpper(s.Name))
		fmt.Printf(" (0x%02X) - %s\n", s.DataCoding, s.Description)
	}
	fmt.Println()
	cli.Warn("Usage examples:\n")
	fmt.Println(`  sms-decoder -e gsm 48656C6C6F`)
	fmt.Println(`  sms-decoder -d 0x00 48656C6C6F`)
	fmt.Println(`  sms-decoder 48656C6C6F   # Auto-detect`)
}
