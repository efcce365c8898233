package interpreter

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

func registerRuntimeEnvBuiltins() {
	builtins["args"] = &Builtin{Name: "args", Fn: builtinArgs}
	builtins["programPath"] = &Builtin{Name: "programPath", Fn: builtinProgramPath}
	builtins["getenv"] = &Builtin{Name: "getenv", Fn: builtinGetenv}
	builtins["readLine"] = &Builtin{Name: "readLine", Fn: builtinReadLine}
}

func builtinArgs(e *Evaluator, args []Value) (Value, error) {
	if len(args) != 0 {
		return nil, &RuntimeError{Message: "args expects no arguments"}
	}
	var progArgs []string
	if e != nil {
		progArgs = e.runtime.getProgramArgs()
	}
	elements := make([]Value, len(progArgs))
	for i, a := range progArgs {
		elements[i] = &String{Value: a}
	}
	return &Array{Elements: elements}, nil
}

func builtinProgramPath(e *Evaluator, args []Value) (Value, error) {
	if len(args) != 0 {
		return nil, &RuntimeError{Message: "programPath expects no arguments"}
	}
	if e == nil {
		return NullValue, nil
	}
	path := e.runtime.getProgramPath()
	if path == "" {
		return NullValue, nil
	}
	return &String{Value: path}, nil
}

func builtinGetenv(e *Evaluator, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, &RuntimeError{Message: "getenv expects 1 argument"}
	}
	name, ok := args[0].(*String)
	if !ok {
		return nil, &RuntimeError{Message: "getenv expects string name"}
	}
	if e == nil {
		return NullValue, nil
	}
	prefix := name.Value + "="
	for _, kv := range e.runtime.getEnviron() {
		if strings.HasPrefix(kv, prefix) {
			return &String{Value: strings.TrimPrefix(kv, prefix)}, nil
		}
	}
	return NullValue, nil
}

func builtinReadLine(e *Evaluator, args []Value) (Value, error) {
	if len(args) != 0 {
		return nil, &RuntimeError{Message: "readLine expects no arguments"}
	}
	if e == nil {
		return nil, &RuntimeError{Message: "readLine unavailable"}
	}
	input := e.runtime.getInput()
	if input == nil {
		msg := e.runtime.getInputUnavailableMessage()
		if msg == "" {
			msg = "input is not available in this context"
		}
		return nil, recoverableError("input", msg)
	}
	reader, ok := inputReaderFor(e, input)
	if !ok {
		return nil, &RuntimeError{Message: "readLine unavailable"}
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, recoverableError("input", err.Error())
	}
	if err == io.EOF && line == "" {
		return nil, recoverableError("input", "end of input")
	}
	return &String{Value: strings.TrimRight(line, "\r\n")}, nil
}

var inputReaders = struct {
	mu sync.Mutex
	m  map[io.Reader]*bufio.Reader
}{m: make(map[io.Reader]*bufio.Reader)}

func inputReaderFor(e *Evaluator, input io.Reader) (*bufio.Reader, bool) {
	if br, ok := input.(*bufio.Reader); ok {
		return br, true
	}
	inputReaders.mu.Lock()
	defer inputReaders.mu.Unlock()
	if r, ok := inputReaders.m[input]; ok {
		return r, true
	}
	r := bufio.NewReader(input)
	inputReaders.m[input] = r
	return r, true
}
