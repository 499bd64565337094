// Package canlog reads frame logs in the plain-text export formats bus
// loggers commonly emit: the CSV layout used by analyzer exports and the
// candump text format. It does not parse binary log containers.
package canlog

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/canlog/tpmerge/internal/can"
	"github.com/canlog/tpmerge/internal/logging"
	"github.com/canlog/tpmerge/internal/metrics"
)

// Format names a supported log layout.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCandump Format = "candump"
)

// ErrUnknownFormat is returned by Read for an unsupported format name.
var ErrUnknownFormat = errors.New("canlog: unknown format")

// Read parses r in the given format. Unparseable lines are counted and
// skipped rather than failing the whole file; loggers truncate on power loss
// and a torn last line is normal.
func Read(r io.Reader, format Format) (can.Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatCandump:
		return ReadCandump(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ReadCSV parses the "Time Stamp,ID,Extended,Dir,Bus,LEN,D1..D8" layout.
// A header line is detected and skipped.
func ReadCSV(r io.Reader) (can.Table, error) {
	var table can.Table
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if line == 1 && strings.Contains(strings.ToLower(text), "time") {
			continue // header
		}
		f, err := parseCSVLine(strings.Split(text, ","))
		if err != nil {
			metrics.IncMalformedLine()
			logging.L().Debug("csv_line_skipped", "line", line, "error", err)
			continue
		}
		table = append(table, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("canlog csv: %w", err)
	}
	return table, nil
}

func parseCSVLine(fields []string) (can.Frame, error) {
	var f can.Frame
	if len(fields) < 6 {
		return f, fmt.Errorf("need at least 6 fields, got %d", len(fields))
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return f, fmt.Errorf("invalid timestamp: %w", err)
	}
	f.Timestamp = ts
	id, err := can.ParseID(fields[1])
	if err != nil {
		return f, err
	}
	f.ID = id
	bus, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil || bus < 0 || bus > 255 {
		return f, fmt.Errorf("invalid bus %q", fields[4])
	}
	f.Channel = uint8(bus)
	length, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil || length < 0 || length > 64 {
		return f, fmt.Errorf("invalid length %q", fields[5])
	}
	f.Length = uint16(length)
	f.DLC = uint8(length)
	for i := 0; i < length && 6+i < len(fields); i++ {
		b, err := strconv.ParseUint(strings.TrimSpace(fields[6+i]), 16, 8)
		if err != nil {
			return f, fmt.Errorf("invalid data byte %d: %w", i, err)
		}
		f.Data = append(f.Data, byte(b))
	}
	if len(f.Data) != length {
		return f, fmt.Errorf("declared length %d but %d data fields", length, len(f.Data))
	}
	return f, nil
}

// ReadCandump parses "(timestamp) interface ID#PAYLOAD" lines. The channel
// number is taken from the trailing digits of the interface name.
func ReadCandump(r io.Reader) (can.Table, error) {
	var table can.Table
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		f, err := parseCandumpLine(text)
		if err != nil {
			metrics.IncMalformedLine()
			logging.L().Debug("candump_line_skipped", "line", line, "error", err)
			continue
		}
		table = append(table, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("canlog candump: %w", err)
	}
	return table, nil
}

func parseCandumpLine(line string) (can.Frame, error) {
	var f can.Frame
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return f, fmt.Errorf("need 3 fields, got %d", len(fields))
	}
	tsField := strings.Trim(fields[0], "()")
	ts, err := strconv.ParseFloat(tsField, 64)
	if err != nil {
		return f, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	f.Timestamp = ts
	f.Channel = channelOf(fields[1])

	idPart, payloadPart, ok := strings.Cut(fields[2], "#")
	if !ok {
		return f, fmt.Errorf("no # separator")
	}
	id, err := can.ParseID(idPart)
	if err != nil {
		return f, err
	}
	f.ID = id
	// CAN FD lines use ID##<flags><data>; drop the extra '#' and flags digit.
	if strings.HasPrefix(payloadPart, "#") {
		payloadPart = payloadPart[1:]
		if payloadPart == "" {
			return f, fmt.Errorf("fd frame missing flags digit")
		}
		payloadPart = payloadPart[1:]
	}
	if payloadPart != "" {
		data, err := hex.DecodeString(payloadPart)
		if err != nil {
			return f, fmt.Errorf("invalid payload: %w", err)
		}
		f.Data = data
	}
	if len(f.Data) > 64 {
		return f, fmt.Errorf("payload %d bytes exceeds 64", len(f.Data))
	}
	f.Length = uint16(len(f.Data))
	f.DLC = uint8(len(f.Data))
	return f, nil
}

// channelOf extracts the numeric suffix of an interface name ("can1" -> 1).
func channelOf(iface string) uint8 {
	i := len(iface)
	for i > 0 && iface[i-1] >= '0' && iface[i-1] <= '9' {
		i--
	}
	if i == len(iface) {
		return 0
	}
	n, err := strconv.Atoi(iface[i:])
	if err != nil || n > 255 {
		return 0
	}
	return uint8(n)
}
