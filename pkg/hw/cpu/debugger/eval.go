package debugger

import (
	"errors"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// ErrExpression is returned for expressions that cannot be parsed or evaluated
var ErrExpression = errors.New("invalid expression")

// Token types for expression parsing
type TokenType int

const (
	TokenNumber TokenType = iota
	TokenIdentifier
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenMod
	TokenAnd
	TokenOr
	TokenXor
	TokenNot
	TokenComplement
	TokenShiftLeft
	TokenShiftRight
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenLessEqual
	TokenGreater
	TokenGreaterEqual
	TokenLogicalAnd
	TokenLogicalOr
	TokenLParen
	TokenRParen
)

// Token represents a lexical token in an expression
type Token struct {
	Type  TokenType
	Value string
	Num   int64 // For number tokens
}

// Operators sorted so that two-character operators are matched first
var operators = []Token{
	{Type: TokenShiftLeft, Value: "<<"},
	{Type: TokenShiftRight, Value: ">>"},
	{Type: TokenEqual, Value: "=="},
	{Type: TokenNotEqual, Value: "!="},
	{Type: TokenLessEqual, Value: "<="},
	{Type: TokenGreaterEqual, Value: ">="},
	{Type: TokenLogicalAnd, Value: "&&"},
	{Type: TokenLogicalOr, Value: "||"},
	{Type: TokenPlus, Value: "+"},
	{Type: TokenMinus, Value: "-"},
	{Type: TokenMul, Value: "*"},
	{Type: TokenDiv, Value: "/"},
	{Type: TokenMod, Value: "%"},
	{Type: TokenAnd, Value: "&"},
	{Type: TokenOr, Value: "|"},
	{Type: TokenXor, Value: "^"},
	{Type: TokenNot, Value: "!"},
	{Type: TokenComplement, Value: "~"},
	{Type: TokenLess, Value: "<"},
	{Type: TokenGreater, Value: ">"},
	{Type: TokenLParen, Value: "("},
	{Type: TokenRParen, Value: ")"},
}

// Environment resolves the names an expression may reference. It is the
// only way an expression can observe the machine.
type Environment interface {
	Lookup(name string) (int64, bool)
}

// StateEnvironment exposes registers, flags (as 0/1), IP, data symbol offsets
// and EQU constants of a machine for expression evaluation
type StateEnvironment struct {
	State   *machine.State
	Program *loader.Program
}

func (e StateEnvironment) Lookup(name string) (int64, bool) {
	if e.State != nil {
		if v, ok := e.State.Registers.Get(name); ok {
			return int64(v), true
		}
		if v, ok := e.State.Flags.Get(name); ok {
			if v {
				return 1, true
			}
			return 0, true
		}
	}
	if e.Program != nil {
		if v, ok := e.Program.Constant(name); ok {
			return v, true
		}
		if sym, ok := e.Program.Symbols.Lookup(name); ok {
			return int64(sym.Offset), true
		}
	}
	return 0, false
}

// ExpressionEvaluator evaluates integer expressions: arithmetic, bitwise,
// comparison and logical operators over numbers and environment names.
// Nothing but the environment can be reached from an expression.
type ExpressionEvaluator struct {
	env Environment
	// checking makes division by zero evaluate to 0
	checking bool
}

// NewExpressionEvaluator creates a new expression evaluator
func NewExpressionEvaluator(env Environment) *ExpressionEvaluator {
	return &ExpressionEvaluator{env: env}
}

func syntaxError(format string, args ...any) error {
	return utils.MakeError(ErrExpression, format, args...)
}

// Eval evaluates an expression string and returns the result
func (e *ExpressionEvaluator) Eval(expr string) (int64, error) {
	tokens, err := e.Tokenize(expr)
	if err != nil {
		return 0, err
	}

	if len(tokens) == 0 {
		return 0, syntaxError("empty expression")
	}

	result, remaining, err := e.parseLogicalOr(tokens)
	if err != nil {
		return 0, err
	}

	if len(remaining) > 0 {
		return 0, syntaxError("unexpected token: %s", remaining[0].Value)
	}

	return result, nil
}

// Check parses expr and resolves every name in it without failing on values:
// division by zero is only an error once the condition runs
func (e *ExpressionEvaluator) Check(expr string) error {
	checker := ExpressionEvaluator{env: e.env, checking: true}
	_, err := checker.Eval(expr)
	return err
}

// EvalCondition evaluates an expression as a boolean: any non-zero value is true
func (e *ExpressionEvaluator) EvalCondition(expr string) (bool, error) {
	v, err := e.Eval(expr)
	return v != 0, err
}

// Tokenize breaks an expression into tokens
func (e *ExpressionEvaluator) Tokenize(expr string) ([]Token, error) {
	var tokens []Token

	for {
		expr = strings.TrimSpace(expr)
		if len(expr) == 0 {
			break
		}

		if tok, ok := matchOperator(expr); ok {
			tokens = append(tokens, tok)
			expr = expr[len(tok.Value):]
			continue
		}

		// Numbers use the assembler syntax (10, 0FFH, 1010B, 0x1F)
		if IsDigit(expr[0]) {
			end := wordEnd(expr)
			num, err := loader.ParseNumber(expr[:end])
			if err != nil {
				return nil, syntaxError("%v", err)
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: expr[:end], Num: num})
			expr = expr[end:]
			continue
		}

		if IsAlpha(expr[0]) || expr[0] == '_' || expr[0] == '@' {
			end := wordEnd(expr)
			tokens = append(tokens, Token{Type: TokenIdentifier, Value: strings.ToUpper(expr[:end])})
			expr = expr[end:]
			continue
		}

		return nil, syntaxError("unexpected character: %c", expr[0])
	}

	return tokens, nil
}

func matchOperator(expr string) (Token, bool) {
	for _, op := range operators {
		if strings.HasPrefix(expr, op.Value) {
			return op, true
		}
	}
	return Token{}, false
}

func wordEnd(expr string) int {
	end := 0
	for end < len(expr) && (IsAlphaNum(expr[end]) || expr[end] == '_' || expr[end] == '@') {
		end++
	}
	return end
}

// Character classification helpers
func IsDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func IsAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func IsAlphaNum(c byte) bool {
	return IsAlpha(c) || IsDigit(c)
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// binaryLevel parses one left-associative precedence level
func (e *ExpressionEvaluator) binaryLevel(tokens []Token, next func([]Token) (int64, []Token, error), apply map[TokenType]func(a, b int64) (int64, error)) (int64, []Token, error) {
	left, tokens, err := next(tokens)
	if err != nil {
		return 0, nil, err
	}

	for len(tokens) > 0 {
		op, ok := apply[tokens[0].Type]
		if !ok {
			break
		}
		right, remaining, err := next(tokens[1:])
		if err != nil {
			return 0, nil, err
		}
		if left, err = op(left, right); err != nil {
			return 0, nil, err
		}
		tokens = remaining
	}

	return left, tokens, nil
}

func pure(f func(a, b int64) int64) func(a, b int64) (int64, error) {
	return func(a, b int64) (int64, error) { return f(a, b), nil }
}

// Recursive descent parser with C operator precedence
// Precedence (lowest to highest):
// 1. ||
// 2. &&
// 3. |
// 4. ^
// 5. &
// 6. == !=
// 7. < <= > >=
// 8. << >>
// 9. + -
// 10. * / %
// 11. unary - ! ~

func (e *ExpressionEvaluator) parseLogicalOr(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseLogicalAnd, map[TokenType]func(a, b int64) (int64, error){
		TokenLogicalOr: pure(func(a, b int64) int64 { return boolValue(a != 0 || b != 0) }),
	})
}

func (e *ExpressionEvaluator) parseLogicalAnd(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseBitOr, map[TokenType]func(a, b int64) (int64, error){
		TokenLogicalAnd: pure(func(a, b int64) int64 { return boolValue(a != 0 && b != 0) }),
	})
}

func (e *ExpressionEvaluator) parseBitOr(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseBitXor, map[TokenType]func(a, b int64) (int64, error){
		TokenOr: pure(func(a, b int64) int64 { return a | b }),
	})
}

func (e *ExpressionEvaluator) parseBitXor(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseBitAnd, map[TokenType]func(a, b int64) (int64, error){
		TokenXor: pure(func(a, b int64) int64 { return a ^ b }),
	})
}

func (e *ExpressionEvaluator) parseBitAnd(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseEquality, map[TokenType]func(a, b int64) (int64, error){
		TokenAnd: pure(func(a, b int64) int64 { return a & b }),
	})
}

func (e *ExpressionEvaluator) parseEquality(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseRelational, map[TokenType]func(a, b int64) (int64, error){
		TokenEqual:    pure(func(a, b int64) int64 { return boolValue(a == b) }),
		TokenNotEqual: pure(func(a, b int64) int64 { return boolValue(a != b) }),
	})
}

func (e *ExpressionEvaluator) parseRelational(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseShift, map[TokenType]func(a, b int64) (int64, error){
		TokenLess:         pure(func(a, b int64) int64 { return boolValue(a < b) }),
		TokenLessEqual:    pure(func(a, b int64) int64 { return boolValue(a <= b) }),
		TokenGreater:      pure(func(a, b int64) int64 { return boolValue(a > b) }),
		TokenGreaterEqual: pure(func(a, b int64) int64 { return boolValue(a >= b) }),
	})
}

func shiftCount(b int64) (uint, error) {
	if b < 0 || b > 63 {
		return 0, syntaxError("shift count %d out of range", b)
	}
	return uint(b), nil
}

func (e *ExpressionEvaluator) parseShift(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseAddSub, map[TokenType]func(a, b int64) (int64, error){
		TokenShiftLeft: func(a, b int64) (int64, error) {
			n, err := shiftCount(b)
			return a << n, err
		},
		TokenShiftRight: func(a, b int64) (int64, error) {
			n, err := shiftCount(b)
			return a >> n, err
		},
	})
}

func (e *ExpressionEvaluator) parseAddSub(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseMulDiv, map[TokenType]func(a, b int64) (int64, error){
		TokenPlus:  pure(func(a, b int64) int64 { return a + b }),
		TokenMinus: pure(func(a, b int64) int64 { return a - b }),
	})
}

func (e *ExpressionEvaluator) parseMulDiv(tokens []Token) (int64, []Token, error) {
	return e.binaryLevel(tokens, e.parseUnary, map[TokenType]func(a, b int64) (int64, error){
		TokenMul: pure(func(a, b int64) int64 { return a * b }),
		TokenDiv: func(a, b int64) (int64, error) {
			if b == 0 {
				if e.checking {
					return 0, nil
				}
				return 0, syntaxError("division by zero")
			}
			return a / b, nil
		},
		TokenMod: func(a, b int64) (int64, error) {
			if b == 0 {
				if e.checking {
					return 0, nil
				}
				return 0, syntaxError("modulo by zero")
			}
			return a % b, nil
		},
	})
}

func (e *ExpressionEvaluator) parseUnary(tokens []Token) (int64, []Token, error) {
	if len(tokens) == 0 {
		return 0, nil, syntaxError("unexpected end of expression")
	}

	var apply func(int64) int64
	switch tokens[0].Type {
	case TokenMinus:
		apply = func(v int64) int64 { return -v }
	case TokenNot:
		apply = func(v int64) int64 { return boolValue(v == 0) }
	case TokenComplement:
		apply = func(v int64) int64 { return ^v }
	default:
		return e.parsePrimary(tokens)
	}

	val, remaining, err := e.parseUnary(tokens[1:])
	if err != nil {
		return 0, nil, err
	}
	return apply(val), remaining, nil
}

func (e *ExpressionEvaluator) parsePrimary(tokens []Token) (int64, []Token, error) {
	if len(tokens) == 0 {
		return 0, nil, syntaxError("unexpected end of expression")
	}

	tok := tokens[0]
	tokens = tokens[1:]

	switch tok.Type {
	case TokenNumber:
		return tok.Num, tokens, nil

	case TokenIdentifier:
		if e.env == nil {
			return 0, nil, syntaxError("unknown name: %s", tok.Value)
		}
		val, ok := e.env.Lookup(tok.Value)
		if !ok {
			return 0, nil, syntaxError("unknown name: %s", tok.Value)
		}
		return val, tokens, nil

	case TokenLParen:
		val, remaining, err := e.parseLogicalOr(tokens)
		if err != nil {
			return 0, nil, err
		}
		if len(remaining) == 0 || remaining[0].Type != TokenRParen {
			return 0, nil, syntaxError("expected ')' after expression")
		}
		return val, remaining[1:], nil

	default:
		return 0, nil, syntaxError("unexpected token: %s", tok.Value)
	}
}

// FormatBinary formats a 16-bit value as a binary string with underscore separators
func FormatBinary(val uint16) string {
	s := utils.FormatUintBinary(uint64(val), 16)
	return s[0:4] + "_" + s[4:8] + "_" + s[8:12] + "_" + s[12:16]
}
