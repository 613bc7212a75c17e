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

package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	liberr "github.com/sabouaram/iftpfm/errors"
)

// rawRecord mirrors the documented JSONL field names exactly (spec §6).
type rawRecord struct {
	HostFrom        string `json:"host_from"`
	PortFrom        int    `json:"port_from"`
	LoginFrom       string `json:"login_from"`
	PasswordFrom    string `json:"password_from"`
	KeyfileFrom     string `json:"keyfile_from"`
	KeyfilePassFrom string `json:"keyfile_pass_from"`
	PathFrom        string `json:"path_from"`
	ProtoFrom       string `json:"proto_from"`

	HostTo        string `json:"host_to"`
	PortTo        int    `json:"port_to"`
	LoginTo       string `json:"login_to"`
	PasswordTo    string `json:"password_to"`
	KeyfileTo     string `json:"keyfile_to"`
	KeyfilePassTo string `json:"keyfile_pass_to"`
	PathTo        string `json:"path_to"`
	ProtoTo       string `json:"proto_to"`

	Age             int    `json:"age"`
	FilenameRegexp  string `json:"filename_regexp"`
}

// LoadFile reads the JSONL rule file described in spec §6: blank lines and
// lines starting with '#' are skipped; every other line is one JSON object.
// On any failure it reports the 1-based line number and the offending
// field via a liberr.Error.
func LoadFile(path string) ([]Rule, liberr.Error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrorFileOpen.Error(err)
	}
	defer func() { _ = f.Close() }()

	var (
		rules []Rule
		line  int
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())

		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var raw rawRecord
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, ErrorLineJSON.Error(err, fmt.Errorf("line %d", line))
		}

		rule := raw.toRule()

		if verr := rule.Validate(); verr != nil {
			verr.Add(fmt.Errorf("line %d", line))
			return nil, verr
		}

		rules = append(rules, rule)
	}

	if err := sc.Err(); err != nil {
		return nil, ErrorLineUnreadable.Error(err)
	}

	return rules, nil
}

func (r rawRecord) toRule() Rule {
	protoFrom := r.ProtoFrom
	if protoFrom == "" {
		protoFrom = string(ProtoFTP)
	}

	protoTo := r.ProtoTo
	if protoTo == "" {
		protoTo = string(ProtoFTP)
	}

	return Rule{
		Source: Endpoint{
			Host:        r.HostFrom,
			Port:        r.PortFrom,
			Login:       r.LoginFrom,
			Password:    r.PasswordFrom,
			KeyFile:     r.KeyfileFrom,
			KeyFilePass: r.KeyfilePassFrom,
			Path:        r.PathFrom,
			Proto:       Proto(protoFrom),
		},
		Destination: Endpoint{
			Host:        r.HostTo,
			Port:        r.PortTo,
			Login:       r.LoginTo,
			Password:    r.PasswordTo,
			KeyFile:     r.KeyfileTo,
			KeyFilePass: r.KeyfilePassTo,
			Path:        r.PathTo,
			Proto:       Proto(protoTo),
		},
		MinAgeSeconds:   r.Age,
		FilenamePattern: r.FilenameRegexp,
	}
}
