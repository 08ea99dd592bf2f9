package websocket

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Presigner issues a time-limited download link for a stored file.
type Presigner interface {
	Presign(ctx context.Context, blobName string, expiry time.Duration) (string, error)
}

// RewriteCitations replaces {filename} citations in an answer with numbered
// markdown links to presigned URLs. Filenames are numbered by first
// appearance; repeated citations reuse their number. Unresolvable citations
// are left untouched. The scan is a single deterministic pass.
func RewriteCitations(ctx context.Context, text string, presigner Presigner) string {
	if presigner == nil || !strings.ContainsRune(text, '{') {
		return text
	}

	var out strings.Builder
	numbers := map[string]int{}
	links := map[string]string{}
	next := 1

	rest := text
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += open

		name := rest[open+1 : end]
		if !looksLikeFilename(name) {
			out.WriteString(rest[:end+1])
			rest = rest[end+1:]
			continue
		}

		number, known := numbers[name]
		if !known {
			link, err := presigner.Presign(ctx, name, 0)
			if err != nil {
				// Leave the citation as-is; the answer is still usable.
				out.WriteString(rest[:end+1])
				rest = rest[end+1:]
				continue
			}
			number = next
			next++
			numbers[name] = number
			links[name] = link
		}

		out.WriteString(rest[:open])
		fmt.Fprintf(&out, "[%d](%s)", number, links[name])
		rest = rest[end+1:]
	}
	return out.String()
}

// looksLikeFilename accepts citation tokens of the form name.ext with no
// whitespace or nested braces.
func looksLikeFilename(name string) bool {
	if name == "" || strings.ContainsAny(name, " \t\n{}") {
		return false
	}
	dot := strings.LastIndexByte(name, '.')
	return dot > 0 && dot < len(name)-1
}
