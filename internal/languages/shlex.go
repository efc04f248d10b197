package languages

import (
	"fmt"
	"strings"
)

// SplitEntry splits a hook entry into words with POSIX-style quoting:
// single quotes are literal, double quotes allow backslash escapes, and an
// unquoted backslash escapes the next character.
func SplitEntry(entry string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
	)

	runes := []rune(entry)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case quote == '"':
			switch c {
			case '"':
				quote = 0
			case '\\':
				if i+1 < len(runes) {
					i++
					next := runes[i]
					if next != '"' && next != '\\' && next != '$' && next != '`' {
						current.WriteRune('\\')
					}
					current.WriteRune(next)
				} else {
					current.WriteRune('\\')
				}
			default:
				current.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == '\\':
			if i+1 < len(runes) {
				i++
				current.WriteRune(runes[i])
				inWord = true
			}
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(c)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in entry: %s", entry)
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
