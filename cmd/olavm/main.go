// Copyright 2024 The olavm Authors
// This file is part of olavm.
//
// olavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// olavm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with olavm. If not, see <http://www.gnu.org/licenses/>.

// olavm is the command line frontend of the VM: it assembles labeled
// assembly bundles into binary programs and executes binary programs,
// emitting the execution trace for the prover.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Hodgeson/olavm/core/asm"
	"github.com/Hodgeson/olavm/core/processor"
	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/trie"
	"github.com/fatih/color"
	"github.com/inconshreveable/log15"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var logger = log15.New("module", "cli")

var (
	inputFlag = cli.StringFlag{
		Name:  "input",
		Usage: "Assembly bundle (JSON) or bare assembly text file",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "Output file for the binary program",
		Value: "program.json",
	}
	programFlag = cli.StringFlag{
		Name:  "program",
		Usage: "Binary program file to execute",
	}
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "Account tree database directory (in-memory when empty)",
	}
	traceFlag = cli.StringFlag{
		Name:  "trace",
		Usage: "Output file for the execution trace",
		Value: "trace.json",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "olavm"
	app.Usage = "Goldilocks zkVM assembler and execution core"
	app.Flags = []cli.Flag{configFileFlag}
	app.Commands = []cli.Command{
		{
			Name:   "asm",
			Usage:  "Assemble a labeled program into its binary form",
			Flags:  []cli.Flag{inputFlag, outputFlag},
			Action: runAsm,
		},
		{
			Name:   "run",
			Usage:  "Execute a binary program and emit its trace",
			Flags:  []cli.Flag{programFlag, dbFlag, traceFlag},
			Action: runExec,
		},
	}
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAsm(ctx *cli.Context) error {
	input := ctx.String(inputFlag.Name)
	if input == "" {
		return fmt.Errorf("asm: --input is required")
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	var program *vm.BinaryProgram
	if strings.HasSuffix(input, ".json") {
		program, err = asm.AssembleJSON(data)
	} else {
		program, err = asm.Assemble(asm.Bundle{Program: string(data)})
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(program, "", "  ")
	if err != nil {
		return err
	}
	output := ctx.String(outputFlag.Name)
	if err := os.WriteFile(output, out, 0644); err != nil {
		return err
	}
	logger.Info("assembled", "input", input, "output", output,
		"elements", len(program.Lines()), "prophets", len(program.Prophets))
	return nil
}

func runExec(ctx *cli.Context) error {
	var cfg Config
	if err := loadConfig(ctx, &cfg); err != nil {
		return err
	}
	if ctx.IsSet(traceFlag.Name) || cfg.TraceOutput == "" {
		cfg.TraceOutput = ctx.String(traceFlag.Name)
	}
	if ctx.IsSet(dbFlag.Name) {
		cfg.DB = ctx.String(dbFlag.Name)
	}
	path := ctx.String(programFlag.Name)
	if path == "" {
		return fmt.Errorf("run: --program is required")
	}
	return execute(path, cfg.DB, cfg.TraceOutput)
}

func execute(programPath, dbPath, tracePath string) error {
	data, err := os.ReadFile(programPath)
	if err != nil {
		return err
	}
	var program vm.BinaryProgram
	if err := json.Unmarshal(data, &program); err != nil {
		return err
	}

	var db *trie.Database
	if dbPath == "" {
		db, err = trie.NewMemoryDatabase()
	} else {
		db, err = trie.NewDatabase(dbPath, 4096)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	proc := processor.NewProcess(trie.NewAccountTree(db), nil)
	tr, err := proc.Execute(&program)
	if err != nil {
		return err
	}

	out, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tracePath, out, 0644); err != nil {
		return err
	}
	logger.Info("executed", "program", programPath, "trace", tracePath)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Subtable", "Rows"})
	table.Append([]string{"cpu", fmt.Sprint(len(tr.Cpu))})
	table.Append([]string{"memory", fmt.Sprint(len(tr.Memory))})
	table.Append([]string{"range-check", fmt.Sprint(len(tr.RangeCheck))})
	table.Append([]string{"bitwise", fmt.Sprint(len(tr.Bitwise))})
	table.Append([]string{"comparison", fmt.Sprint(len(tr.Comparison))})
	table.Append([]string{"poseidon", fmt.Sprint(len(tr.Poseidon))})
	table.Append([]string{"storage", fmt.Sprint(len(tr.Storage))})
	table.Append([]string{"storage-hash", fmt.Sprint(len(tr.StorageHash))})
	table.Render()
	return nil
}
