// Command pwcheck validates a password read from stdin against a password
// policy and prints every rule it violates.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jwalitptl/password-policy/internal/config"
	"github.com/jwalitptl/password-policy/internal/policy"
	"github.com/jwalitptl/password-policy/pkg/logger"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	configFile   string
	minLength    int
	maxLength    int
	uppercase    bool
	lowercase    bool
	digits       bool
	special      bool
	specialChars string
	jsonOutput   bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log := logger.NewLogger(&logger.Config{Level: logger.WarnLevel, Output: stderr})

	var opts options
	fs := pflag.NewFlagSet("pwcheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configFile, "config", "c", "", "policy config file (YAML)")
	fs.IntVar(&opts.minLength, "min-length", 0, "minimum password length in bytes")
	fs.IntVar(&opts.maxLength, "max-length", 0, "maximum password length in bytes")
	fs.BoolVar(&opts.uppercase, "uppercase", false, "require an uppercase letter")
	fs.BoolVar(&opts.lowercase, "lowercase", false, "require a lowercase letter")
	fs.BoolVar(&opts.digits, "digits", false, "require a digit")
	fs.BoolVar(&opts.special, "special", false, "require a special character")
	fs.StringVar(&opts.specialChars, "special-chars", "", "characters that count as special")
	fs.BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: pwcheck [flags] < password")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitValid
		}
		return exitError
	}

	engine, err := newEngine(opts.configFile)
	if err != nil {
		log.Error(err, "failed to load policy")
		return exitError
	}
	applyFlags(engine, fs, opts)

	password, err := readPassword(stdin)
	if err != nil {
		log.Error(err, "failed to read password")
		return exitError
	}

	result := engine.Validate(password)
	if err := printResult(stdout, result, opts.jsonOutput); err != nil {
		log.Error(err, "failed to write result")
		return exitError
	}

	if !result.Valid() {
		return exitInvalid
	}
	return exitValid
}

func newEngine(configFile string) (*policy.Engine, error) {
	if configFile == "" {
		return policy.New(), nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	return policy.NewWithConfig(cfg.Policy), nil
}

// applyFlags overrides the loaded policy with the flags given explicitly.
func applyFlags(engine *policy.Engine, fs *pflag.FlagSet, opts options) {
	if fs.Changed("min-length") {
		engine.SetMinimumLength(opts.minLength)
	}
	if fs.Changed("max-length") {
		engine.SetMaximumLength(opts.maxLength)
	}
	if fs.Changed("uppercase") {
		engine.SetUppercaseRequirement(opts.uppercase)
	}
	if fs.Changed("lowercase") {
		engine.SetLowercaseRequirement(opts.lowercase)
	}
	if fs.Changed("digits") {
		engine.SetDigitRequirement(opts.digits)
	}
	if fs.Changed("special") {
		engine.SetSpecialCharsRequirement(opts.special)
	}
	if fs.Changed("special-chars") {
		engine.SetSpecialCharacterSet(opts.specialChars)
	}
}

// readPassword returns the first line of r without its line terminator.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func printResult(w io.Writer, result policy.Result, asJSON bool) error {
	if asJSON {
		violations := result.Violations
		if violations == nil {
			violations = []policy.Violation{}
		}
		return json.NewEncoder(w).Encode(struct {
			Valid      bool               `json:"valid"`
			Violations []policy.Violation `json:"violations"`
		}{result.Valid(), violations})
	}

	if result.Valid() {
		_, err := fmt.Fprintln(w, "password satisfies the policy")
		return err
	}
	for _, v := range result.Violations {
		if _, err := fmt.Fprintf(w, "%s: %s\n", v.Rule, v.Message); err != nil {
			return err
		}
	}
	return nil
}
