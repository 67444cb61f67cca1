package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/utils"
	"github.com/vybium/vybium-advice/pkg/vybium-advice"
)

// ProgramInput is the second input line
type ProgramInput struct {
	Program string   `json:"program"`         // Assembly, e.g. "adv_push.2 mtree_get"
	Stack   []uint64 `json:"stack,omitempty"` // Initial operand stack, top first
}

// Output is written to stdout as a single JSON line
type Output struct {
	Stack  []uint64                   `json:"stack"`
	Cycles uint64                     `json:"cycles"`
	Advice *vybiumadvice.AdviceInputs `json:"advice,omitempty"`
}

var (
	hashFlag = &cli.StringFlag{
		Name:  "hash",
		Usage: "Merkle hash function (tip5 or sha3); defaults to the one named by the inputs",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level written to stderr",
		Value: "info",
	}
	maxCyclesFlag = &cli.Uint64Flag{
		Name:  "max-cycles",
		Usage: "Maximum number of executed instructions",
		Value: vybiumadvice.DefaultConfig().MaxCycles,
	}
	verifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "Replay the recorded advice and check that it reproduces the execution",
	}

	recordCmd = &cli.Command{
		Name:   "record",
		Usage:  "Execute against a recording provider and print the minimal advice",
		Flags:  []cli.Flag{verifyFlag},
		Action: record,
	}
	replayCmd = &cli.Command{
		Name:   "replay",
		Usage:  "Execute against the given advice without recording",
		Action: replay,
	}
)

func main() {
	app := &cli.App{
		Name:  "vybium-advice-recorder",
		Usage: "Record and replay advice for Vybium VM programs",
		Description: "Reads two JSON lines from stdin: the advice inputs and the program " +
			`({"program": "...", "stack": [...]}). Writes the result as one JSON line to stdout.`,
		Flags:    []cli.Flag{hashFlag, logLevelFlag, maxCyclesFlag},
		Commands: []*cli.Command{recordCmd, replayCmd},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vybium-advice-recorder:", err)
		os.Exit(1)
	}
}

type session struct {
	config *vybiumadvice.Config
	logger *zap.Logger
	inputs *vybiumadvice.AdviceInputs
	input  ProgramInput
}

func (s *session) options() []vybiumadvice.Option {
	stack := vybiumadvice.NewFelts(s.input.Stack...)
	return []vybiumadvice.Option{
		vybiumadvice.WithLogger(s.logger),
		vybiumadvice.WithOperandStack(stack...),
	}
}

func newSession(ctx *cli.Context) (*session, error) {
	config := vybiumadvice.DefaultConfig().
		WithLogLevel(ctx.String(logLevelFlag.Name)).
		WithMaxCycles(ctx.Uint64(maxCyclesFlag.Name))

	inputs, input, err := readInputs(os.Stdin)
	if err != nil {
		return nil, err
	}

	inputHash := inputs.MerkleStore().Hasher().Name()
	if ctx.IsSet(hashFlag.Name) && ctx.String(hashFlag.Name) != inputHash {
		return nil, fmt.Errorf("--hash %s does not match the %s store in the inputs", ctx.String(hashFlag.Name), inputHash)
	}
	config.WithHashFunction(inputHash)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, err
	}
	return &session{config: config, logger: logger, inputs: inputs, input: input}, nil
}

func record(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	s.logger.Info("recording execution",
		zap.Int("stack", len(s.inputs.Stack())),
		zap.Int("map_entries", s.inputs.Map().Len()),
		zap.Int("store_nodes", s.inputs.MerkleStore().Len()))

	result, err := vybiumadvice.Record(s.config, s.inputs, s.input.Program, s.options()...)
	if err != nil {
		return err
	}
	s.logger.Info("execution recorded",
		zap.Uint64("cycles", result.Cycles),
		zap.Int("map_entries", result.Proof.Map().Len()),
		zap.Int("store_nodes", result.Proof.MerkleStore().Len()))

	if ctx.Bool(verifyFlag.Name) {
		if err := verify(s, result); err != nil {
			return err
		}
		s.logger.Info("recorded advice verified by replay")
	}

	return writeOutput(os.Stdout, result)
}

func replay(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	result, err := vybiumadvice.Replay(s.config, s.inputs, s.input.Program, s.options()...)
	if err != nil {
		return err
	}
	s.logger.Info("execution replayed", zap.Uint64("cycles", result.Cycles))
	return writeOutput(os.Stdout, result)
}

// verify round-trips the proof through JSON and replays it
func verify(s *session, recorded *vybiumadvice.ExecutionResult) error {
	data, err := vybiumadvice.EncodeInputs(recorded.Proof)
	if err != nil {
		return err
	}
	proof, err := vybiumadvice.DecodeInputs(data)
	if err != nil {
		return err
	}
	replayed, err := vybiumadvice.Replay(s.config, proof, s.input.Program, s.options()...)
	if err != nil {
		return fmt.Errorf("replay of recorded advice failed: %w", err)
	}
	if !slices.Equal(recorded.Stack, replayed.Stack) || recorded.Cycles != replayed.Cycles {
		return fmt.Errorf("replay diverged from recorded execution")
	}
	return nil
}

func readInputs(r io.Reader) (*vybiumadvice.AdviceInputs, ProgramInput, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	// Line 1: advice inputs
	if !scanner.Scan() {
		return nil, ProgramInput{}, fmt.Errorf("failed to read advice inputs: %w", scanErr(scanner))
	}
	inputs, err := vybiumadvice.DecodeInputs(scanner.Bytes())
	if err != nil {
		return nil, ProgramInput{}, err
	}

	// Line 2: program
	if !scanner.Scan() {
		return nil, ProgramInput{}, fmt.Errorf("failed to read program: %w", scanErr(scanner))
	}
	var input ProgramInput
	if err := json.Unmarshal(scanner.Bytes(), &input); err != nil {
		return nil, ProgramInput{}, fmt.Errorf("failed to parse program: %w", err)
	}
	return inputs, input, nil
}

func scanErr(scanner *bufio.Scanner) error {
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func writeOutput(w io.Writer, result *vybiumadvice.ExecutionResult) error {
	out := Output{
		Stack:  make([]uint64, len(result.Stack)),
		Cycles: result.Cycles,
		Advice: result.Proof,
	}
	for i, v := range result.Stack {
		out.Stack[i] = v.Value()
	}
	return json.NewEncoder(w).Encode(out)
}
