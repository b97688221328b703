// Package condition implements a restricted boolean-expression evaluator
// used for executor enable/skip conditions and conditional-edge routing. It
// parses a small grammar of field comparisons joined by "and"/"or" and
// evaluates them against a content item's data, without ever invoking a
// general-purpose expression engine that could be abused for code
// injection.
package condition

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Operator is one comparison supported by a single condition.
type Operator string

const (
	Equals              Operator = "=="
	NotEquals           Operator = "!="
	GreaterThan         Operator = ">"
	GreaterThanOrEqual  Operator = ">="
	LessThan            Operator = "<"
	LessThanOrEqual     Operator = "<="
	Contains            Operator = "contains"
	NotContains         Operator = "not_contains"
	In                  Operator = "in"
	NotIn               Operator = "not_in"
	StartsWith          Operator = "starts_with"
	EndsWith            Operator = "ends_with"
	RegexMatch          Operator = "regex_match"
	IsEmpty             Operator = "is_empty"
	IsNotEmpty          Operator = "is_not_empty"
)

// operatorsByLength lists every operator ordered longest-token-first, so
// that parsing matches ">=" before ">" and "not_contains" before "contains"
// would-be substrings.
var operatorsByLength = func() []Operator {
	ops := []Operator{
		Equals, NotEquals, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual,
		Contains, NotContains, In, NotIn, StartsWith, EndsWith, RegexMatch, IsEmpty, IsNotEmpty,
	}
	sort.SliceStable(ops, func(i, j int) bool { return len(ops[i]) > len(ops[j]) })
	return ops
}()

func isUnary(op Operator) bool { return op == IsEmpty || op == IsNotEmpty }

// Condition is a single field comparison.
type Condition struct {
	FieldPath string
	Operator  Operator
	Value     any
}

// LogicalOp combines conditions within a Group.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// Node is implemented by Condition and *Group, the two things a Group's
// Conditions slice may hold.
type Node interface {
	isConditionNode()
}

func (Condition) isConditionNode() {}
func (*Group) isConditionNode()    {}

// Group is a set of Nodes combined with a single logical operator.
type Group struct {
	Conditions []Node
	Logical    LogicalOp
}

// Error reports a failure to parse or evaluate a condition expression.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

const maxFieldDepth = 10

var validFieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

var dangerousPatterns = []string{
	"__class__", "__name__", "__module__", "__dict__", "__doc__", "__bases__",
	"__subclasses__", "__mro__", "__globals__", "__locals__", "__builtins__",
	"__import__",
}

var dangerousFunctions = []string{
	"eval(", "exec(", "compile(", "__import__(", "open(", "file(",
	"input(", "raw_input(", "globals(", "locals(", "vars(", "dir(",
	"getattr(", "setattr(", "hasattr(", "delattr(",
}

// Evaluator parses and evaluates condition strings, caching compiled regex
// patterns across calls for RegexMatch operators.
type Evaluator struct {
	mu         sync.Mutex
	regexCache map[string]*regexp.Regexp
}

// New returns a ready-to-use Evaluator.
func New() *Evaluator {
	return &Evaluator{regexCache: make(map[string]*regexp.Regexp)}
}

// Parse parses a condition string into a Group, rejecting anything matching
// the security blocklist before attempting to interpret it as a grammar.
func (e *Evaluator) Parse(s string) (*Group, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errf("condition string cannot be empty")
	}
	if err := validateSecurity(s); err != nil {
		return nil, err
	}
	return parseGroup(s)
}

// Evaluate evaluates a pre-parsed Group against data.
func (e *Evaluator) Evaluate(group *Group, data map[string]any) (bool, error) {
	return e.evaluateGroup(group, data)
}

// EvaluateString parses and evaluates condition in one call.
func (e *Evaluator) EvaluateString(conditionStr string, data map[string]any) (bool, error) {
	group, err := e.Parse(conditionStr)
	if err != nil {
		return false, err
	}
	return e.Evaluate(group, data)
}

// Validate parses conditionStr and returns a list of problems (empty when
// valid), without evaluating it.
func (e *Evaluator) Validate(conditionStr string) []string {
	if _, err := e.Parse(conditionStr); err != nil {
		return []string{err.Error()}
	}
	return nil
}

func validateSecurity(s string) error {
	if strings.Contains(s, ";") {
		return errf("semicolons are not allowed in condition strings")
	}
	for _, fn := range dangerousFunctions {
		if strings.Contains(s, fn) {
			return errf("dangerous function call detected: %s", fn)
		}
	}
	for _, p := range dangerousPatterns {
		if strings.Contains(s, p) {
			return errf("dangerous pattern detected: %s", p)
		}
	}
	return nil
}

var andSplit = regexp.MustCompile(`(?i)\s+and\s+`)
var orSplit = regexp.MustCompile(`(?i)\s+or\s+`)

// parseGroup parses s under the grammar rule that "and" binds tighter than
// "or": the top-level split is on "or", and each resulting segment is then
// split on "and", so "a==1 or b==2 and c==3" parses as
// "a==1 or (b==2 and c==3)", not "(a==1 or b==2) and c==3".
func parseGroup(s string) (*Group, error) {
	orParts := orSplit.Split(s, -1)
	if len(orParts) > 1 {
		var nodes []Node
		for _, part := range orParts {
			part = strings.TrimSpace(part)
			andParts := andSplit.Split(part, -1)
			if len(andParts) > 1 {
				var andNodes []Node
				for _, p := range andParts {
					cond, err := parseSingle(strings.TrimSpace(p))
					if err != nil {
						return nil, err
					}
					andNodes = append(andNodes, cond)
				}
				nodes = append(nodes, &Group{Conditions: andNodes, Logical: LogicalAnd})
			} else {
				cond, err := parseSingle(part)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, cond)
			}
		}
		return &Group{Conditions: nodes, Logical: LogicalOr}, nil
	}

	andParts := andSplit.Split(s, -1)
	if len(andParts) > 1 {
		var nodes []Node
		for _, p := range andParts {
			cond, err := parseSingle(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, cond)
		}
		return &Group{Conditions: nodes, Logical: LogicalAnd}, nil
	}

	cond, err := parseSingle(s)
	if err != nil {
		return nil, err
	}
	return &Group{Conditions: []Node{cond}}, nil
}

func parseSingle(s string) (Condition, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, op := range operatorsByLength {
		if isUnary(op) {
			if strings.Contains(s, string(op)) {
				fieldPath := strings.TrimSpace(strings.Replace(s, string(op), "", 1))
				if err := validateFieldPath(fieldPath); err != nil {
					return Condition{}, err
				}
				return Condition{FieldPath: fieldPath, Operator: op}, nil
			}
			continue
		}
		if idx := strings.Index(s, string(op)); idx >= 0 {
			fieldPath := strings.TrimSpace(s[:idx])
			valueStr := strings.TrimSpace(s[idx+len(op):])
			if err := validateFieldPath(fieldPath); err != nil {
				return Condition{}, err
			}
			value := parseValue(valueStr)
			return Condition{FieldPath: fieldPath, Operator: op, Value: value}, nil
		}
	}

	return Condition{}, errf("invalid condition format: %s", s)
}

func validateFieldPath(fieldPath string) error {
	if fieldPath == "" {
		return errf("field path cannot be empty")
	}
	for _, p := range dangerousPatterns {
		if strings.Contains(fieldPath, p) {
			return errf("dangerous pattern detected in field path: %s", p)
		}
	}

	parts := strings.Split(fieldPath, ".")
	if len(parts) > maxFieldDepth {
		return errf("field path depth exceeds maximum (%d)", maxFieldDepth)
	}

	for _, part := range parts {
		if part == "" {
			return errf("field path cannot contain empty parts")
		}
		if strings.Contains(part, "[") && strings.Contains(part, "]") {
			fieldName := part[:strings.Index(part, "[")]
			open := strings.Index(part, "[")
			closeIdx := strings.LastIndex(part, "]")
			indexPart := part[open+1 : closeIdx]

			if fieldName != "" && !validFieldPattern.MatchString(fieldName) {
				return errf("invalid field name: %s", fieldName)
			}
			for _, p := range dangerousPatterns {
				if strings.Contains(fieldName, p) {
					return errf("dangerous pattern detected in field name: %s", p)
				}
			}
			if !isValidIndex(indexPart) {
				return errf("invalid array index: %s", indexPart)
			}
		} else if !validFieldPattern.MatchString(part) {
			return errf("invalid field name: %s", part)
		} else {
			for _, p := range dangerousPatterns {
				if strings.Contains(part, p) {
					return errf("dangerous pattern detected in field name: %s", p)
				}
			}
		}
	}
	return nil
}

func isValidIndex(indexPart string) bool {
	if _, err := strconv.Atoi(indexPart); err == nil {
		return true
	}
	if len(indexPart) >= 2 {
		if strings.HasPrefix(indexPart, `"`) && strings.HasSuffix(indexPart, `"`) {
			return true
		}
		if strings.HasPrefix(indexPart, "'") && strings.HasSuffix(indexPart, "'") {
			return true
		}
	}
	return false
}

func parseValue(valueStr string) any {
	valueStr = strings.TrimSpace(valueStr)

	if len(valueStr) >= 2 {
		if strings.HasPrefix(valueStr, `"`) && strings.HasSuffix(valueStr, `"`) {
			return valueStr[1 : len(valueStr)-1]
		}
		if strings.HasPrefix(valueStr, "'") && strings.HasSuffix(valueStr, "'") {
			return valueStr[1 : len(valueStr)-1]
		}
	}

	if strings.HasPrefix(valueStr, "[") && strings.HasSuffix(valueStr, "]") {
		inner := strings.TrimSpace(valueStr[1 : len(valueStr)-1])
		if inner == "" {
			return []any{}
		}
		var items []any
		for _, item := range strings.Split(inner, ",") {
			items = append(items, parseValue(strings.TrimSpace(item)))
		}
		return items
	}

	switch strings.ToLower(valueStr) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}

	if f, err := strconv.ParseFloat(valueStr, 64); err == nil {
		if !strings.Contains(valueStr, ".") {
			if i, err := strconv.Atoi(valueStr); err == nil {
				return float64(i)
			}
		}
		return f
	}

	return valueStr
}

func (e *Evaluator) evaluateGroup(group *Group, data map[string]any) (bool, error) {
	results := make([]bool, 0, len(group.Conditions))
	for _, node := range group.Conditions {
		switch n := node.(type) {
		case Condition:
			result, err := e.evaluateCondition(n, data)
			if err != nil {
				return false, err
			}
			results = append(results, result)
		case *Group:
			result, err := e.evaluateGroup(n, data)
			if err != nil {
				return false, err
			}
			results = append(results, result)
		default:
			return false, errf("invalid condition node type: %T", node)
		}
	}

	switch group.Logical {
	case LogicalOr:
		for _, r := range results {
			if r {
				return true, nil
			}
		}
		return false, nil
	default: // LogicalAnd, including the zero value
		for _, r := range results {
			if !r {
				return false, nil
			}
		}
		return true, nil
	}
}

func (e *Evaluator) evaluateCondition(c Condition, data map[string]any) (bool, error) {
	fieldValue := getFieldValue(c.FieldPath, data)

	switch c.Operator {
	case Equals:
		return looseEquals(fieldValue, c.Value), nil
	case NotEquals:
		return !looseEquals(fieldValue, c.Value), nil
	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return compareNumeric(c.Operator, fieldValue, c.Value)
	case Contains:
		return membership(c.Value, fieldValue), nil
	case NotContains:
		return !membership(c.Value, fieldValue), nil
	case In:
		return membership(fieldValue, c.Value), nil
	case NotIn:
		return !membership(fieldValue, c.Value), nil
	case StartsWith:
		return strings.HasPrefix(fmt.Sprint(fieldValue), fmt.Sprint(c.Value)), nil
	case EndsWith:
		return strings.HasSuffix(fmt.Sprint(fieldValue), fmt.Sprint(c.Value)), nil
	case RegexMatch:
		pattern, _ := c.Value.(string)
		return e.regexMatch(fieldValue, pattern)
	case IsEmpty:
		return isEmptyValue(fieldValue), nil
	case IsNotEmpty:
		return !isEmptyValue(fieldValue), nil
	default:
		return false, errf("unknown operator: %s", c.Operator)
	}
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if l, ok := v.([]any); ok {
		return len(l) == 0
	}
	return false
}

func looseEquals(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && (a == nil) == (b == nil)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func compareNumeric(op Operator, fieldValue, target any) (bool, error) {
	a, aok := toFloat(fieldValue)
	b, bok := toFloat(target)
	if !aok || !bok {
		return false, errf("cannot compare non-numeric values with operator %s", op)
	}
	switch op {
	case GreaterThan:
		return a > b, nil
	case GreaterThanOrEqual:
		return a >= b, nil
	case LessThan:
		return a < b, nil
	case LessThanOrEqual:
		return a <= b, nil
	default:
		return false, errf("unsupported numeric operator: %s", op)
	}
}

// membership reports whether needle appears in haystack, where haystack may
// be a []any, a string (substring match), or nil.
func membership(needle, haystack any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}
		return false
	case string:
		s, ok := needle.(string)
		if !ok {
			s = fmt.Sprint(needle)
		}
		return strings.Contains(h, s)
	default:
		return false
	}
}

func (e *Evaluator) regexMatch(fieldValue any, pattern string) (bool, error) {
	e.mu.Lock()
	re, ok := e.regexCache[pattern]
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			e.mu.Unlock()
			return false, errf("invalid regex pattern %q: %v", pattern, err)
		}
		e.regexCache[pattern] = re
	}
	e.mu.Unlock()
	return re.MatchString(fmt.Sprint(fieldValue)), nil
}

// getFieldValue resolves a dot-and-bracket field path against data,
// returning nil for any missing or non-indexable segment.
func getFieldValue(fieldPath string, data map[string]any) any {
	parts := strings.Split(fieldPath, ".")
	var current any = data

	for _, part := range parts {
		if current == nil {
			return nil
		}

		if strings.Contains(part, "[") && strings.Contains(part, "]") {
			fieldName := part[:strings.Index(part, "[")]
			open := strings.Index(part, "[")
			closeIdx := strings.LastIndex(part, "]")
			indexPart := part[open+1 : closeIdx]

			if fieldName != "" {
				m, ok := current.(map[string]any)
				if !ok {
					return nil
				}
				current = m[fieldName]
			}

			switch c := current.(type) {
			case []any:
				idx, err := strconv.Atoi(indexPart)
				if err != nil || idx < 0 || idx >= len(c) {
					return nil
				}
				current = c[idx]
			case map[string]any:
				key := indexPart
				if len(key) >= 2 {
					if (strings.HasPrefix(key, `"`) && strings.HasSuffix(key, `"`)) ||
						(strings.HasPrefix(key, "'") && strings.HasSuffix(key, "'")) {
						key = key[1 : len(key)-1]
					}
				}
				current = c[key]
			default:
				return nil
			}
		} else {
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			current = m[part]
		}
	}

	return current
}
