// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/evr/evr"
)

// ErrQuit is returned by Shell.Exec when the exit command was entered.
var ErrQuit = errors.New("ioc: quit")

type shellCmd struct {
	args string
	help string
	narg [2]int // min and max number of arguments
	run  func(sh *Shell, ctx context.Context, args []string) error
}

var shellCmds map[string]shellCmd

func init() {
	shellCmds = map[string]shellCmd{
		"evrConfigure": {
			args: "name host port freq",
			help: "declare a card reachable at host:port with a freq MHz event clock",
			narg: [2]int{4, 4},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return sh.ioc.Configure(ctx, args[0], args[1], args[2], args[3])
			},
		},
		"dbLoadRecord": {
			args: `name "card:command [parameter=N]"`,
			help: "declare a record bound to a card command",
			narg: [2]int{2, 2},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return sh.ioc.LoadRecord(args[0], args[1])
			},
		},
		"dbLoadConfig": {
			args: "file.yaml",
			help: "declare the cards and records of a configuration file",
			narg: [2]int{1, 1},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return sh.ioc.LoadFile(ctx, args[0])
			},
		},
		"evrInit": {
			help: "bring up the cards and start processing records",
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return sh.ioc.Init(ctx)
			},
		},
		"evrReport": {
			args: "[detail]",
			help: "report the configured cards",
			narg: [2]int{0, 1},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				detail := 0
				if len(args) > 0 {
					v, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("ioc: invalid report detail %q: %w", args[0], evr.ErrSyntax)
					}
					detail = v
				}
				return sh.ioc.Report(ctx, sh.w, detail)
			},
		},
		"evrFactoryReset": {
			args: "card",
			help: "reset every output, pulser and delay of a card",
			narg: [2]int{1, 1},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return sh.ioc.FactoryReset(ctx, args[0])
			},
		},
		"dbpf": {
			args: "record value",
			help: "write a value to an output record",
			narg: [2]int{2, 2},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				v, err := sh.ioc.Put(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.w, "%s = %v\n", args[0], v)
				return nil
			},
		},
		"dbgf": {
			args: "record",
			help: "read the value of a record",
			narg: [2]int{1, 1},
			run: func(sh *Shell, ctx context.Context, args []string) error {
				v, err := sh.ioc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.w, "%s = %v\n", args[0], v)
				return nil
			},
		},
		"dbl": {
			help: "list the records",
			run: func(sh *Shell, ctx context.Context, args []string) error {
				for _, rec := range sh.ioc.Records() {
					fmt.Fprintf(sh.w, "%s\t%v\n", rec.Name(), rec.Link())
				}
				return nil
			},
		},
		"help": {
			help: "list the commands",
			run: func(sh *Shell, ctx context.Context, args []string) error {
				for _, name := range shellNames() {
					cmd := shellCmds[name]
					fmt.Fprintf(sh.w, "%-16s %-40s %s\n", name, cmd.args, cmd.help)
				}
				return nil
			},
		},
		"exit": {
			help: "leave the shell",
			run: func(sh *Shell, ctx context.Context, args []string) error {
				return ErrQuit
			},
		},
	}
}

func shellNames() []string {
	names := make([]string, 0, len(shellCmds))
	for name := range shellCmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shell interprets IOC shell commands:
//
//	evrConfigure evr1 192.168.1.20 2000 125
//	dbLoadRecord EVR1:P0-DLY "evr1:setPulserDelay parameter=0"
//	evrInit
//	dbpf EVR1:P0-DLY 10.5
type Shell struct {
	ioc *IOC
	w   io.Writer
}

// NewShell returns a shell driving ioc and printing its results to w.
func NewShell(ioc *IOC, w io.Writer) *Shell {
	return &Shell{ioc: ioc, w: w}
}

// Exec runs one command line.
// Blank lines and lines starting with '#' are ignored.
func (sh *Shell) Exec(ctx context.Context, line string) error {
	args, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	name, args := args[0], args[1:]
	cmd, ok := shellCmds[name]
	if !ok {
		return fmt.Errorf("ioc: unknown command %q: %w", name, evr.ErrSyntax)
	}
	if len(args) < cmd.narg[0] || len(args) > cmd.narg[1] {
		return fmt.Errorf("ioc: usage: %s %s: %w", name, cmd.args, evr.ErrSyntax)
	}
	return cmd.run(sh, ctx, args)
}

// Run executes the script read from r, stopping at the first failing line.
func (sh *Shell) Run(ctx context.Context, r io.Reader) error {
	var (
		sc = bufio.NewScanner(r)
		i  = 0
	)
	for sc.Scan() {
		i++
		err := sh.Exec(ctx, sc.Text())
		if err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return fmt.Errorf("ioc: line %d: %w", i, err)
		}
	}

	err := sc.Err()
	if err != nil {
		return fmt.Errorf("ioc: could not read script: %w", err)
	}
	return nil
}

// Complete returns the completions of a partially typed line.
func (sh *Shell) Complete(line string) []string {
	var out []string
	name, arg, ok := strings.Cut(line, " ")
	if !ok {
		for _, cmd := range shellNames() {
			if strings.HasPrefix(cmd, name) {
				out = append(out, cmd)
			}
		}
		return out
	}

	switch name {
	case "dbpf", "dbgf":
		arg = strings.TrimLeft(arg, " ")
		if strings.Contains(arg, " ") {
			return nil
		}
		for _, rec := range sh.ioc.Records() {
			if strings.HasPrefix(rec.Name(), arg) {
				out = append(out, name+" "+rec.Name())
			}
		}
	case "evrFactoryReset":
		arg = strings.TrimLeft(arg, " ")
		for _, card := range sh.ioc.Cards() {
			if strings.HasPrefix(card.Name(), arg) {
				out = append(out, name+" "+card.Name())
			}
		}
	}
	return out
}

// tokenize splits line into whitespace separated words.
// Double-quoted words may contain spaces; parentheses and commas are
// separators, so that iocsh-style calls such as
//
//	dbLoadRecord("EVR1:ENA", "evr1:enable")
//
// are accepted.
func tokenize(line string) ([]string, error) {
	var (
		toks []string
		cur  strings.Builder
		in   bool // inside a quoted word
		word bool // a word is being built
	)
	flush := func() {
		if word {
			toks = append(toks, cur.String())
			cur.Reset()
			word = false
		}
	}

	for _, r := range line {
		switch {
		case in && r == '"':
			in = false
		case in:
			cur.WriteRune(r)
		case r == '"':
			in = true
			word = true
		case r == '#' && !word:
			flush()
			return toks, nil
		case r == ' ' || r == '\t' || r == '(' || r == ')' || r == ',':
			flush()
		default:
			cur.WriteRune(r)
			word = true
		}
	}
	if in {
		return nil, fmt.Errorf("ioc: unterminated quote in %q: %w", line, evr.ErrSyntax)
	}
	flush()
	return toks, nil
}
