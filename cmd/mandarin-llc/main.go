package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raymyers/mandarin-llc/pkg/backend"
	"github.com/raymyers/mandarin-llc/pkg/logger"
	"github.com/raymyers/mandarin-llc/pkg/mandarin"
	"github.com/raymyers/mandarin-llc/pkg/rtl"
	"github.com/raymyers/mandarin-llc/pkg/rtlload"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dRTL      bool
	dSel      bool
	dRegAlloc bool
	dMach     bool
	dAsm      bool
	dSpew     bool
)

// Target and output options
var (
	configPath    string
	disableFPElim bool
	relocModel    string
	outputPath    string
	verbose       bool
)

// ErrCompilation indicates that at least one function failed to compile
var ErrCompilation = errors.New("compilation failed")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Normalize CompCert-style single-dash flags to double-dash for pflag compatibility
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the dump flags that also accept a single dash
var debugFlagNames = []string{"drtl", "dsel", "dregalloc", "dmach", "dasm", "dspew"}

// normalizeFlags converts single-dash dump flags like -dmach to --dmach
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

// wordSepNormalize accepts underscores in long flag names,
// so --disable_fp_elim works like --disable-fp-elim
func wordSepNormalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mandarin-llc [file.yaml]",
		Short: "mandarin-llc compiles RTL modules to Mandarin assembly",
		Long: `mandarin-llc is the back end for the Mandarin target: a 32-bit,
big-endian machine whose stack grows upward. It reads an RTL module
written as YAML and prints Mandarin assembly.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			if err := initLogging(errOut); err != nil {
				fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
				return err
			}
			opts, err := targetOptions(cmd.Flags())
			if err != nil {
				fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
				return err
			}
			return compile(args[0], opts, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.Flags()
	flags.SetNormalizeFunc(wordSepNormalize)

	// Add debug flags
	flags.BoolVarP(&dRTL, "drtl", "", false, "Dump the loaded RTL")
	flags.BoolVarP(&dSel, "dsel", "", false, "Dump machine code after instruction selection")
	flags.BoolVarP(&dRegAlloc, "dregalloc", "", false, "Dump machine code after register allocation")
	flags.BoolVarP(&dMach, "dmach", "", false, "Dump final machine code")
	flags.BoolVarP(&dAsm, "dasm", "", false, "Dump assembly")
	flags.BoolVarP(&dSpew, "dspew", "", false, "Dump the loaded RTL module structure")

	// Add target and output flags
	flags.StringVar(&configPath, "config", "", "Target configuration YAML")
	flags.BoolVar(&disableFPElim, "disable-fp-elim", false, "Always use a frame pointer")
	flags.StringVar(&relocModel, "relocation-model", mandarin.RelocStatic, "Relocation model (static or pic)")
	flags.StringVarP(&outputPath, "output", "o", "", "Write assembly to this file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every compilation phase")

	return rootCmd
}

func initLogging(errOut io.Writer) error {
	cfg := logger.DefaultConfig()
	cfg.Output = errOut
	if verbose {
		cfg.Level = logger.LevelDebug
	}
	return logger.Init(cfg)
}

// targetOptions loads --config and applies the flags the user set on top
func targetOptions(flags *pflag.FlagSet) (mandarin.Options, error) {
	opts := mandarin.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = mandarin.LoadOptions(configPath); err != nil {
			return opts, err
		}
	}
	if flags.Changed("disable-fp-elim") {
		opts.DisableFPElim = disableFPElim
	}
	if flags.Changed("relocation-model") {
		opts.RelocModel = relocModel
	}
	return opts, opts.Validate()
}

// compile runs the whole pipeline on filename
func compile(filename string, opts mandarin.Options, out, errOut io.Writer) error {
	prog, err := rtlload.LoadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
		return err
	}

	if dSpew {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(out, prog)
	}
	if dRTL {
		if err := dumpTo(dumpFilename(filename, ".rtl"), out, func(w io.Writer) {
			rtl.NewPrinter(w).PrintProgram(prog)
		}); err != nil {
			fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
			return err
		}
	}

	tgt, err := mandarin.New(opts)
	if err != nil {
		fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
		return err
	}
	be := backend.New(tgt)

	stageDumps := []struct {
		on    bool
		stage backend.Stage
		ext   string
	}{
		{dSel, backend.AfterSelection, ".sel"},
		{dRegAlloc, backend.AfterRegAlloc, ".regalloc"},
		{dMach, backend.AfterLowering, ".mach"},
	}
	var buffers []*bytes.Buffer
	var bufferFiles []string
	for _, d := range stageDumps {
		if d.on {
			buf := &bytes.Buffer{}
			be.Dumps[d.stage] = buf
			buffers = append(buffers, buf)
			bufferFiles = append(bufferFiles, dumpFilename(filename, d.ext))
		}
	}

	var asmBuf bytes.Buffer
	compileErr := be.CompileModule(prog, &asmBuf)

	for i, buf := range buffers {
		if err := dumpTo(bufferFiles[i], out, func(w io.Writer) { w.Write(buf.Bytes()) }); err != nil {
			fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
			return err
		}
	}

	if err := writeAssembly(filename, asmBuf.Bytes(), out); err != nil {
		fmt.Fprintf(errOut, "mandarin-llc: %v\n", err)
		return err
	}

	if compileErr != nil {
		for _, line := range strings.Split(compileErr.Error(), "\n") {
			fmt.Fprintf(errOut, "mandarin-llc: error: %s\n", line)
		}
		return fmt.Errorf("%w: %w", ErrCompilation, compileErr)
	}
	return nil
}

// writeAssembly sends the assembly to -o, to the .s dump file for -dasm,
// and to out unless -o was given
func writeAssembly(filename string, text []byte, out io.Writer) error {
	if dAsm {
		if err := os.WriteFile(dumpFilename(filename, ".s"), text, 0644); err != nil {
			return fmt.Errorf("writing assembly dump: %w", err)
		}
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, text, 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}
	_, err := out.Write(text)
	return err
}

// dumpTo writes a dump to path and, for convenience, to out
func dumpTo(path string, out io.Writer, write func(io.Writer)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	write(io.MultiWriter(f, out))
	return nil
}

// dumpFilename returns the dump file for input: input.yaml -> input<ext>
func dumpFilename(filename, ext string) string {
	for _, in := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(filename, in) {
			return filename[:len(filename)-len(in)] + ext
		}
	}
	return filename + ext
}
