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

// Package config holds the typed representation of one transfer rule and
// the validation rules a loaded record must satisfy before the engine will
// touch it.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	libval "github.com/go-playground/validator/v10"
	liberr "github.com/sabouaram/iftpfm/errors"
)

// Proto names one of the three supported wire protocols.
type Proto string

const (
	ProtoFTP  Proto = "ftp"
	ProtoFTPS Proto = "ftps"
	ProtoSFTP Proto = "sftp"
)

// Endpoint carries the connection parameters for one side (source or
// destination) of a rule.
type Endpoint struct {
	Host          string `json:"host" validate:"required,hostname_port|hostname|ip"`
	Port          int    `json:"port" validate:"required,min=1,max=65535"`
	Login         string `json:"login" validate:"required"`
	Password      string `json:"password"`
	KeyFile       string `json:"keyfile"`
	KeyFilePass   string `json:"keyfile_pass"`
	Path          string `json:"path" validate:"required"`
	Proto         Proto  `json:"proto" validate:"required,oneof=ftp ftps sftp"`
}

// Rule is the validated, typed form of one line of the configuration file
// (spec §6's field list, folded into two Endpoint values).
type Rule struct {
	Source      Endpoint `json:"-" validate:"required"`
	Destination Endpoint `json:"-" validate:"required"`

	MinAgeSeconds   int    `json:"age" validate:"gte=0"`
	FilenamePattern string `json:"filename_regexp" validate:"required"`

	re *regexp.Regexp
}

// Regexp returns the compiled filename pattern, compiling it on first use.
func (r *Rule) Regexp() (*regexp.Regexp, error) {
	if r.re != nil {
		return r.re, nil
	}

	re, err := regexp.Compile(r.FilenamePattern)
	if err != nil {
		return nil, err
	}

	r.re = re
	return re, nil
}

// Validate runs struct-tag validation plus the credential cross-field
// invariants from the data model: ftp/ftps require a password; sftp
// requires exactly one of password/keyfile; a passphrase is only valid
// alongside a keyfile.
func (r *Rule) Validate() liberr.Error {
	v := libval.New()

	e := ErrorRuleValidation.Error(nil)

	if err := v.Struct(r); err != nil {
		if ve, ok := err.(libval.ValidationErrors); ok {
			for _, fe := range ve {
				e.Add(fmt.Errorf("field '%s' failed constraint '%s'", fe.Namespace(), fe.ActualTag()))
			}
		} else {
			e.Add(err)
		}
	}

	if err := validateEndpointCredential(r.Source); err != nil {
		e.Add(fmt.Errorf("source: %w", err))
	}

	if err := validateEndpointCredential(r.Destination); err != nil {
		e.Add(fmt.Errorf("destination: %w", err))
	}

	if _, err := r.Regexp(); err != nil {
		e.Add(fmt.Errorf("filename_regexp: %w", err))
	}

	if !e.HasParent() {
		return nil
	}

	return e
}

func validateEndpointCredential(ep Endpoint) error {
	hasPassword := strings.TrimSpace(ep.Password) != ""
	hasKeyfile := strings.TrimSpace(ep.KeyFile) != ""

	if !hasKeyfile && ep.KeyFilePass != "" {
		return fmt.Errorf("keyfile_pass set without a keyfile")
	}

	switch ep.Proto {
	case ProtoFTP, ProtoFTPS:
		if !hasPassword {
			return fmt.Errorf("protocol %q requires a password", ep.Proto)
		}
		if hasKeyfile {
			return fmt.Errorf("protocol %q does not accept a keyfile", ep.Proto)
		}
	case ProtoSFTP:
		if hasPassword == hasKeyfile {
			return fmt.Errorf("protocol sftp requires exactly one of password or keyfile")
		}
		if hasKeyfile {
			if _, err := os.Stat(ep.KeyFile); err != nil {
				return fmt.Errorf("keyfile %q: %w", ep.KeyFile, err)
			}
		} else if ep.KeyFilePass != "" {
			return fmt.Errorf("keyfile_pass set without a keyfile")
		}
	}

	return nil
}
