package bril

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

// Parse parses a JSON program of the form {"functions": [...]}.
//
// Branch and jump targets are read from the "labels" field only. A br or
// jmp carrying its targets in "args" is rejected with
// ErrMalformedInstruction.
func Parse(data []byte) (*Program, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse program: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("program must be a JSON object; got %s", v.Type())
	}
	fns := v.Get("functions")
	if fns == nil {
		return nil, fmt.Errorf("missing `functions` array")
	}
	items, err := fns.Array()
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal `functions`: %w", err)
	}
	prog := &Program{Functions: make([]*Function, 0, len(items))}
	for i, item := range items {
		f, err := parseFunction(item)
		if err != nil {
			return nil, fmt.Errorf("function #%d: %w", i, err)
		}
		prog.Functions = append(prog.Functions, f)
	}
	return prog, nil
}

func parseFunction(v *fastjson.Value) (*Function, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("function must be a JSON object")
	}
	name, err := stringField(v, "name")
	if err != nil {
		return nil, err
	}
	f := &Function{Name: name}
	if t := v.Get("type"); t != nil {
		if f.Type, err = parseType(t); err != nil {
			return nil, fmt.Errorf("func %s: return type: %w", name, err)
		}
	}
	if args := v.Get("args"); args != nil {
		items, err := args.Array()
		if err != nil {
			return nil, fmt.Errorf("func %s: cannot unmarshal `args`: %w", name, err)
		}
		for _, item := range items {
			argName, err := stringField(item, "name")
			if err != nil {
				return nil, fmt.Errorf("func %s: parameter: %w", name, err)
			}
			t := item.Get("type")
			if t == nil {
				return nil, fmt.Errorf("func %s: parameter %s: missing `type`", name, argName)
			}
			typ, err := parseType(t)
			if err != nil {
				return nil, fmt.Errorf("func %s: parameter %s: %w", name, argName, err)
			}
			f.Args = append(f.Args, Arg{Name: argName, Type: typ})
		}
	}
	if instrs := v.Get("instrs"); instrs != nil {
		items, err := instrs.Array()
		if err != nil {
			return nil, fmt.Errorf("func %s: cannot unmarshal `instrs`: %w", name, err)
		}
		f.Instrs = make([]Instr, 0, len(items))
		for i, item := range items {
			in, err := ParseInstr(item)
			if err != nil {
				return nil, fmt.Errorf("instruction #%d: %w", i, InFunc(err, name, ""))
			}
			f.Instrs = append(f.Instrs, in)
		}
	}
	return f, nil
}

// instrFields holds the recognized fields of one instruction object.
type instrFields struct {
	label, op, dest, typ, args, funcs, labels, value *fastjson.Value
}

// ParseInstr converts one JSON instruction object into an Instr.
func ParseInstr(v *fastjson.Value) (Instr, error) {
	o, err := v.Object()
	if err != nil {
		return nil, Errorf(ErrMalformedInstruction, "instruction must be a JSON object; got %s", v.Type())
	}
	var fs instrFields
	o.Visit(func(key []byte, v *fastjson.Value) {
		switch string(key) {
		case "label":
			fs.label = v
		case "op":
			fs.op = v
		case "dest":
			fs.dest = v
		case "type":
			fs.typ = v
		case "args":
			fs.args = v
		case "funcs":
			fs.funcs = v
		case "labels":
			fs.labels = v
		case "value":
			fs.value = v
		}
		// Source positions and other annotations are not carried.
	})

	if fs.label != nil {
		if fs.op != nil || fs.dest != nil || fs.args != nil || fs.labels != nil || fs.value != nil {
			return nil, Errorf(ErrMalformedInstruction, "label object must carry only `label`")
		}
		name, err := fs.label.StringBytes()
		if err != nil || len(name) == 0 {
			return nil, Errorf(ErrMalformedInstruction, "`label` must be a non-empty string")
		}
		return &Label{Name: string(name)}, nil
	}
	if fs.op == nil {
		return nil, Errorf(ErrMalformedInstruction, "object has neither `label` nor `op`")
	}
	opb, err := fs.op.StringBytes()
	if err != nil || len(opb) == 0 {
		return nil, Errorf(ErrMalformedInstruction, "`op` must be a non-empty string")
	}
	op := string(opb)

	args, err := stringArray(fs.args, "args")
	if err != nil {
		return nil, err
	}
	funcs, err := stringArray(fs.funcs, "funcs")
	if err != nil {
		return nil, err
	}
	labels, err := stringArray(fs.labels, "labels")
	if err != nil {
		return nil, err
	}

	switch op {
	case OpBr:
		if fs.dest != nil || fs.value != nil {
			return nil, Errorf(ErrMalformedInstruction, "br must not carry `dest` or `value`")
		}
		if len(args) != 1 || len(labels) != 2 {
			return nil, Errorf(ErrMalformedInstruction,
				"br needs 1 argument and 2 labels in `labels`; got %d arguments and %d labels", len(args), len(labels))
		}
		return &Branch{Cond: args[0], True: labels[0], False: labels[1]}, nil
	case OpJmp:
		if fs.dest != nil || fs.value != nil {
			return nil, Errorf(ErrMalformedInstruction, "jmp must not carry `dest` or `value`")
		}
		if len(args) != 0 || len(labels) != 1 {
			return nil, Errorf(ErrMalformedInstruction,
				"jmp needs no arguments and 1 label in `labels`; got %d arguments and %d labels", len(args), len(labels))
		}
		return &Jump{Target: labels[0]}, nil
	case OpRet:
		if fs.dest != nil || fs.value != nil || len(labels) != 0 {
			return nil, Errorf(ErrMalformedInstruction, "ret must not carry `dest`, `value` or `labels`")
		}
		switch len(args) {
		case 0:
			return &Return{}, nil
		case 1:
			return &Return{Arg: args[0]}, nil
		}
		return nil, Errorf(ErrMalformedInstruction, "ret takes at most 1 argument; got %d", len(args))
	}

	if len(labels) != 0 {
		return nil, Errorf(ErrMalformedInstruction, "%s must not carry `labels`", op)
	}

	if fs.dest == nil {
		if fs.typ != nil || fs.value != nil {
			return nil, Errorf(ErrMalformedInstruction, "%s without `dest` must not carry `type` or `value`", op)
		}
		if op == OpConst {
			return nil, Errorf(ErrMalformedInstruction, "const without `dest`")
		}
		return &Effect{Op: op, Args: args, Funcs: funcs}, nil
	}

	destb, err := fs.dest.StringBytes()
	if err != nil || len(destb) == 0 {
		return nil, Errorf(ErrMalformedInstruction, "`dest` must be a non-empty string")
	}
	dest := string(destb)
	if fs.typ == nil {
		return nil, Errorf(ErrMalformedInstruction, "%s: missing `type`", dest)
	}
	typ, err := parseType(fs.typ)
	if err != nil {
		return nil, Errorf(ErrMalformedInstruction, "%s: %s", dest, err)
	}

	if op == OpConst {
		if fs.value == nil {
			return nil, Errorf(ErrMalformedInstruction, "%s: const without `value`", dest)
		}
		if len(args) != 0 || len(funcs) != 0 {
			return nil, Errorf(ErrMalformedInstruction, "%s: const must not carry `args` or `funcs`", dest)
		}
		lit, err := parseLiteral(fs.value, typ)
		if err != nil {
			return nil, Errorf(ErrMalformedInstruction, "%s: %s", dest, err)
		}
		return &Const{Dest: dest, Type: typ, Value: lit}, nil
	}
	if fs.value != nil {
		return nil, Errorf(ErrMalformedInstruction, "%s: only const carries `value`", dest)
	}
	return &Value{Dest: dest, Type: typ, Op: op, Args: args, Funcs: funcs}, nil
}

func parseLiteral(v *fastjson.Value, typ Type) (Literal, error) {
	switch v.Type() {
	case fastjson.TypeTrue, fastjson.TypeFalse:
		if typ != "bool" {
			return Literal{}, fmt.Errorf("boolean literal for type %s", typ)
		}
		return BoolLit(v.Type() == fastjson.TypeTrue), nil
	case fastjson.TypeNumber:
		if typ != "int" {
			return Literal{}, fmt.Errorf("integer literal for type %s", typ)
		}
		n, err := v.Int64()
		if err != nil {
			return Literal{}, fmt.Errorf("unsupported numeric literal %s", v)
		}
		return IntLit(n), nil
	}
	return Literal{}, fmt.Errorf("unsupported literal %s", v)
}

// parseType accepts "int", "bool", ... and parameterized pointer types
// {"ptr": T}, which are carried as "ptr<T>".
func parseType(v *fastjson.Value) (Type, error) {
	switch v.Type() {
	case fastjson.TypeString:
		s, _ := v.StringBytes()
		if len(s) == 0 {
			return "", fmt.Errorf("empty type")
		}
		return Type(s), nil
	case fastjson.TypeObject:
		o, _ := v.Object()
		inner := o.Get("ptr")
		if inner == nil || o.Len() != 1 {
			return "", fmt.Errorf("unsupported type %s", v)
		}
		t, err := parseType(inner)
		if err != nil {
			return "", err
		}
		return Type("ptr<" + string(t) + ">"), nil
	}
	return "", fmt.Errorf("type must be a string or object; got %s", v.Type())
}

func stringField(v *fastjson.Value, field string) (string, error) {
	f := v.Get(field)
	if f == nil {
		return "", fmt.Errorf("missing `%s`", field)
	}
	b, err := f.StringBytes()
	if err != nil {
		return "", fmt.Errorf("`%s` must be a string: %w", field, err)
	}
	return string(b), nil
}

func stringArray(v *fastjson.Value, field string) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, Errorf(ErrMalformedInstruction, "`%s` must be an array of strings", field)
	}
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		b, err := item.StringBytes()
		if err != nil || len(b) == 0 {
			return nil, Errorf(ErrMalformedInstruction, "`%s[%d]` must be a non-empty string", field, i)
		}
		out[i] = string(b)
	}
	return out, nil
}

// Marshal encodes p in the JSON wire format.
func Marshal(p *Program) []byte {
	var a fastjson.Arena
	root := a.NewObject()
	fns := a.NewArray()
	for i, f := range p.Functions {
		fns.SetArrayItem(i, EncodeFunction(&a, f))
	}
	root.Set("functions", fns)
	return root.MarshalTo(nil)
}

// EncodeFunction encodes f (name, args, type and instrs) using a.
func EncodeFunction(a *fastjson.Arena, f *Function) *fastjson.Value {
	o := a.NewObject()
	o.Set("name", a.NewString(f.Name))
	if len(f.Args) > 0 {
		args := a.NewArray()
		for i, arg := range f.Args {
			p := a.NewObject()
			p.Set("name", a.NewString(arg.Name))
			p.Set("type", encodeType(a, arg.Type))
			args.SetArrayItem(i, p)
		}
		o.Set("args", args)
	}
	if f.Type != "" {
		o.Set("type", encodeType(a, f.Type))
	}
	o.Set("instrs", EncodeInstrs(a, f.Instrs))
	return o
}

// EncodeInstrs encodes an instruction list as a JSON array.
func EncodeInstrs(a *fastjson.Arena, instrs []Instr) *fastjson.Value {
	arr := a.NewArray()
	for i, in := range instrs {
		arr.SetArrayItem(i, EncodeInstr(a, in))
	}
	return arr
}

// EncodeInstr encodes one instruction.
func EncodeInstr(a *fastjson.Arena, in Instr) *fastjson.Value {
	o := a.NewObject()
	switch in := in.(type) {
	case *Label:
		o.Set("label", a.NewString(in.Name))
	case *Const:
		o.Set("dest", a.NewString(in.Dest))
		o.Set("type", encodeType(a, in.Type))
		o.Set("op", a.NewString(OpConst))
		o.Set("value", encodeLiteral(a, in.Value))
	case *Value:
		o.Set("dest", a.NewString(in.Dest))
		o.Set("type", encodeType(a, in.Type))
		o.Set("op", a.NewString(in.Op))
		setStrings(a, o, "args", in.Args)
		setStrings(a, o, "funcs", in.Funcs)
	case *Effect:
		o.Set("op", a.NewString(in.Op))
		setStrings(a, o, "args", in.Args)
		setStrings(a, o, "funcs", in.Funcs)
	case *Branch:
		o.Set("op", a.NewString(OpBr))
		setStrings(a, o, "args", []string{in.Cond})
		setStrings(a, o, "labels", []string{in.True, in.False})
	case *Jump:
		o.Set("op", a.NewString(OpJmp))
		setStrings(a, o, "labels", []string{in.Target})
	case *Return:
		o.Set("op", a.NewString(OpRet))
		if in.Arg != "" {
			setStrings(a, o, "args", []string{in.Arg})
		}
	}
	return o
}

func setStrings(a *fastjson.Arena, o *fastjson.Value, key string, ss []string) {
	if len(ss) == 0 {
		return
	}
	arr := a.NewArray()
	for i, s := range ss {
		arr.SetArrayItem(i, a.NewString(s))
	}
	o.Set(key, arr)
}

func encodeLiteral(a *fastjson.Arena, l Literal) *fastjson.Value {
	if l.IsBool() {
		if l.Bool() {
			return a.NewTrue()
		}
		return a.NewFalse()
	}
	return a.NewNumberString(strconv.FormatInt(l.Int(), 10))
}

func encodeType(a *fastjson.Arena, t Type) *fastjson.Value {
	s := string(t)
	if strings.HasPrefix(s, "ptr<") && strings.HasSuffix(s, ">") {
		o := a.NewObject()
		o.Set("ptr", encodeType(a, Type(s[len("ptr<"):len(s)-1])))
		return o
	}
	return a.NewString(s)
}
