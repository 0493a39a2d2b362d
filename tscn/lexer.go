package tscn

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer definition for the scene text format. Attribute keys may contain
// path separators (layer_0/tile_data); floats must win over ints, which the
// rule order encodes.
var tscnLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `;[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
		{Name: "Float", Pattern: `[-+]?(?:\d+\.\d*|\.\d+)(?:[eE][-+]?\d+)?|[-+]?\d+[eE][-+]?\d+`},
		{Name: "Int", Pattern: `[-+]?\d+`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*(?:/[A-Za-z0-9_]+)*`},
		{Name: "Punct", Pattern: `[\[\](){}=:,&]`},
	},
})

// tokenize runs the lexer over src and drops whitespace and comments.
func tokenize(name string, src []byte) ([]lexer.Token, error) {
	lx, err := tscnLexer.Lex(name, strings.NewReader(string(src)))
	if err != nil {
		return nil, err
	}
	syms := tscnLexer.Symbols()
	skip := map[lexer.TokenType]bool{
		syms["Comment"]:    true,
		syms["Whitespace"]: true,
	}
	var toks []lexer.Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.EOF() {
			break
		}
		if skip[tok.Type] {
			continue
		}
		toks = append(toks, tok)
	}
	return toks, nil
}
