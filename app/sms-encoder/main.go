// sms-encoder shows hexstring and data_coding of a text message, ready for SMPP PDU.
package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

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

	if p.verbose {
		cli.Note("Input processing:\n")
		fmt.Printf("  Text: %q\n", p.text)
		fmt.Printf("  Length: %d characters\n\n", utf8.RuneCountInString(p.text))
	}

	enc, tries, err := encodeText(p.text, p.encoding)
	if p.verbose {
		if p.encoding == "" {
			cli.Note("Auto-selecting encoding...\n")
		}
		for _, t := range tries {
			cli.Warn("Trying %s (data_coding=0x%02X)\n", strings.ToUpper(t.Scheme.Name), t.Scheme.DataCoding)
			if t.Err != nil {
				cli.Fail("Failed with %s: %v\n", strings.ToUpper(t.Scheme.Name), t.Err)
			} else {
				cli.Success("Success with %s\n", strings.ToUpper(t.Scheme.Name))
			}
		}
		fmt.Println()
	}
	if err != nil {
		cli.Exitf("%v", err)
	}
	display(p, enc)
}

func display(p Params, enc coding.Encoded) {
	s := enc.Scheme
	line := strings.Repeat("=", 50)

	cli.Title("SMS Encoder Results")
	fmt.Println(line)
	cli.Info("Input text: %q\n", p.text)
	cli.Info("Display: %s\n", p.text)
	cli.Info("Length: %d characters\n", utf8.RuneCountInString(p.text))

	fmt.Println()
	cli.Success("Encoding: %s\n", strings.ToUpper(s.Name))
	cli.Info("Description: %s\n", s.Description)
	cli.Info("SMPP data_coding: 0x%02X (%d)\n", s.DataCoding, s.DataCoding)
	cli.Info("Length: %d octets\n", len(enc.Data))
	cli.Success("Hexstring: %s\n", hexString(enc.Data))

	if p.packed {
		if b := packed(enc); b != nil {
			cli.Note("Packed (7-bit): %s (%d septets, %d octets)\n", hexString(b), len(enc.Data), len(b))
		} else {
			cli.Warn("Packed view is available for GSM encoding only\n")
		}
	}

	fmt.Println()
	if n := enc.Parts(); n == 1 {
		cli.Info("SMS type: Single SMS (fits in one message)\n")
	} else {
		cli.Warn("SMS type: Concatenated SMS (%d parts needed)\n", n)
	}
	cli.Info("Limits: %d chars (single), %d chars (concat)\n", s.Single, s.Concat)
	fmt.Println(line)

	if p.verbose && len(enc.Data) <= 50 {
		fmt.Println()
		cli.Warn("Byte-by-byte breakdown:\n")
		for _, b := range breakdown(enc, p.text) {
			fmt.Printf("  %2d: 0x%02X (%3d) <- %q\n", b.Offset, b.Value, b.Value, b.Char)
		}
	}
}

func listEncodings() {
	cli.Title("Supported Encodings")
	fmt.Println(strings.Repeat("=", 50))
	for _, s := range textSchemes {
		cli.Info("%-8s", strings.ToUpper(s.Name))
		fmt.Printf(" (0x%02X) - %s\n", s.DataCoding, s.Description)
		fmt.Printf("         Limits: %d chars (single), %d chars (concat)\n\n", s.Single, s.Concat)
	}
	cli.Warn("Usage examples:\n")
	fmt.Println(`  sms-encoder -e gsm "Hello World"`)
	fmt.Println(`  sms-encoder -e utf8 "Hello 世界"`)
	fmt.Println(`  sms-encoder -v -packed "Test message"`)
}
