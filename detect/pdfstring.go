package detect

import "strings"

// Unescape resolves the escape sequences of a PDF literal string:
// octal escapes \ddd (one to three digits) and the character escapes
// \( \) \\ \n \r \t. A backslash before any other character is
// dropped, as PDF readers do.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}

		i++
		switch next := s[i]; next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(next)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			value := int(next - '0')
			for n := 0; n < 2 && i+1 < len(s); n++ {
				d := s[i+1]
				if d < '0' || d > '7' {
					break
				}
				value = value*8 + int(d-'0')
				i++
			}
			b.WriteByte(byte(value))
		default:
			b.WriteByte(next)
		}
	}

	return b.String()
}
