/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/muesli/reflow/truncate"

	"fountainlex/internal/script"
)

// maxTextCells bounds the quoted span text on one tree line, in terminal cells.
const maxTextCells = 60

// Text writes the span tree one span per line, children indented by two
// spaces, followed by the diagnostics:
//
//	heading [0,20) "INT. HOUSE - DAY #1#"
//	  scene_number [17,20) "#1#"
//	! transition [22,38) "> Burn to white."
//	# 3:5: unterminated italic marker *
//
// Plain spans are omitted. Forced spans are prefixed with "! ".
func Text(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	if doc.Path != "" {
		fmt.Fprintf(bw, "# %s (%d bytes)\n", doc.Path, doc.Length)
	}
	script.Walk(doc.Spans, func(s script.Span, depth int) bool {
		if s.Kind == script.Plain {
			return false
		}
		bw.WriteString(strings.Repeat("  ", depth))
		if s.Forced {
			bw.WriteString("! ")
		}
		fmt.Fprintf(bw, "%s [%d,%d) %s\n", s.Kind, s.Start, s.End, quoteShort(s.Text))
		return true
	})
	for _, d := range doc.Diagnostics {
		fmt.Fprintf(bw, "# %s\n", d)
	}
	return bw.Flush()
}

func quoteShort(s string) string {
	cut := truncate.String(s, maxTextCells)
	if cut == s {
		return strconv.Quote(s)
	}
	return strconv.Quote(cut) + "..."
}
