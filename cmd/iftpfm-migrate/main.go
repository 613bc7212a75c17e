/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command iftpfm-migrate converts a legacy 12-column CSV rule file into
// the JSONL format iftpfm reads. Blank lines and '#'-comments are copied
// through verbatim; malformed rows are logged and skipped rather than
// aborting the whole conversion. Grounded on
// original_source/migrate_csv_to_jsonl.rs.
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sabouaram/iftpfm/logging"
)

const csvColumns = 12

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <input.csv> <output.jsonl>\n", os.Args[0])
		os.Exit(1)
	}

	log := logging.New(logging.ToStdout{})

	if err := migrate(os.Args[1], os.Args[2], log); err != nil {
		log.Error("migration failed: %s", err)
		os.Exit(1)
	}
}

func migrate(inputPath, outputPath string, log *logging.Logger) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input file %q: %w", inputPath, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file %q: %w", outputPath, err)
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	defer func() { _ = w.Flush() }()

	sc := bufio.NewScanner(in)

	var (
		lineNum  int
		written  int
	)

	for sc.Scan() {
		lineNum++
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			fmt.Fprintln(w, raw)
			continue
		}

		rec, err := csv.NewReader(strings.NewReader(trimmed)).Read()
		if err != nil {
			log.Warn("line %d: unparseable CSV, skipping: %s", lineNum, err)
			continue
		}
		if len(rec) != csvColumns {
			log.Warn("line %d has %d fields (expected %d), skipping", lineNum, len(rec), csvColumns)
			continue
		}

		portFrom, err := strconv.Atoi(rec[1])
		if err != nil {
			log.Warn("line %d has invalid port_from %q, skipping", lineNum, rec[1])
			continue
		}
		portTo, err := strconv.Atoi(rec[6])
		if err != nil {
			log.Warn("line %d has invalid port_to %q, skipping", lineNum, rec[6])
			continue
		}
		age, err := strconv.Atoi(rec[10])
		if err != nil {
			log.Warn("line %d has invalid age %q, skipping", lineNum, rec[10])
			continue
		}

		record := map[string]any{
			"host_from":       rec[0],
			"port_from":       portFrom,
			"login_from":      rec[2],
			"password_from":   rec[3],
			"path_from":       rec[4],
			"host_to":         rec[5],
			"port_to":         portTo,
			"login_to":        rec[7],
			"password_to":     rec[8],
			"path_to":         rec[9],
			"age":             age,
			"filename_regexp": rec[11],
		}

		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("line %d: encoding JSON: %w", lineNum, err)
		}

		if _, err := fmt.Fprintln(w, string(encoded)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		written++
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	log.Info("successfully converted %d line(s) from %s to %s", written, inputPath, outputPath)
	return nil
}
