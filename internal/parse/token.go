package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	Text TokenKind = iota
	QuotedText
	OpenParen
	CloseParen
	OpenBracket
	CloseBracket
	Comma
	Colon
	Minus
	// Whitespace is kept in the stream so the parser can reject it where
	// the grammar forbids it.
	Whitespace
	// Invalid marks a lexical error; it is always the last token.
	Invalid
	End
)

var tokenKindNames = map[TokenKind]string{
	Text:         "Text",
	QuotedText:   "QuotedText",
	OpenParen:    "(",
	CloseParen:   ")",
	OpenBracket:  "[",
	CloseBracket: "]",
	Comma:        ",",
	Colon:        ":",
	Minus:        "-",
	Whitespace:   "Whitespace",
	Invalid:      "Invalid",
	End:          "End",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

var punctuation = map[byte]TokenKind{
	'(': OpenParen,
	')': CloseParen,
	'[': OpenBracket,
	']': CloseBracket,
	',': Comma,
	':': Colon,
	'-': Minus,
}

// Token is one lexical element of a parameter value.
type Token struct {
	Kind TokenKind
	// Value is the identifier text, the unescaped quoted text, or for
	// Invalid tokens the error message.
	Value string
	// Position is the 0-based character offset of the token in the input.
	Position int
}

func (t Token) String() string {
	switch t.Kind {
	case Text, QuotedText, Invalid:
		return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Value, t.Position)
	default:
		return fmt.Sprintf("%s@%d", t.Kind, t.Position)
	}
}

func isTextChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.'
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Tokenize splits input into tokens. The result always ends with an End or
// an Invalid token; scanning stops at the first lexical error so that tokens
// before it remain usable and errors are reported in input order.
func Tokenize(input string) []Token {
	var tokens []Token

	// at converts byte offsets, visited in increasing order, to character
	// offsets.
	chars, counted := 0, 0
	at := func(b int) int {
		chars += utf8.RuneCountInString(input[counted:b])
		counted = b
		return chars
	}

	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case isWhitespace(c):
			start := i
			for i < len(input) && isWhitespace(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: Whitespace, Value: input[start:i], Position: at(start)})

		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\'' {
					if i+1 < len(input) && input[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return append(tokens, Token{Kind: Invalid, Value: "' expected.", Position: at(len(input))})
			}
			tokens = append(tokens, Token{Kind: QuotedText, Value: sb.String(), Position: at(start)})

		case isTextChar(c) && c != '.':
			start := i
			for i < len(input) && isTextChar(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: Text, Value: input[start:i], Position: at(start)})

		default:
			kind, ok := punctuation[c]
			if !ok {
				r, _ := utf8.DecodeRuneInString(input[i:])
				return append(tokens, Token{
					Kind:     Invalid,
					Value:    fmt.Sprintf("Unexpected character '%c'.", r),
					Position: at(i),
				})
			}
			tokens = append(tokens, Token{Kind: kind, Position: at(i)})
			i++
		}
	}
	return append(tokens, Token{Kind: End, Position: at(len(input))})
}
