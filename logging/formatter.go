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

package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// lineFormatter renders exactly: "YYYY-MM-DD HH:MM:SS [Tn] message\n",
// the [Tn] tag present only when the entry carries one, and embedded
// newlines/carriage-returns collapsed to single spaces.
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	msg := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(e.Message)

	var b strings.Builder
	b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))

	if tag, ok := e.Data[tagField]; ok {
		b.WriteString(" [")
		b.WriteString(tag.(string))
		b.WriteString("]")
	}

	b.WriteString(" ")
	b.WriteString(msg)
	b.WriteString("\n")

	return []byte(b.String()), nil
}
