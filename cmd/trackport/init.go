package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/trackport/internal/config"
	"github.com/steveyegge/trackport/internal/output"
	"github.com/steveyegge/trackport/internal/ui"
)

// prefixPattern matches issue tracker project short names.
var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// initAnswers is the config file written by init, in file key order.
type initAnswers struct {
	Snapshot     string `yaml:"snapshot"`
	Project      string `yaml:"project,omitempty"`
	Prefix       string `yaml:"prefix"`
	UserMapping  string `yaml:"user-mapping,omitempty"`
	Output       string `yaml:"output"`
	OutputFormat string `yaml:"output-format"`
	Estimates    bool   `yaml:"estimates"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a trackport.yaml config file interactively",
	Long: `Ask for the settings an export needs and write them to trackport.yaml
in the current directory. Later runs of 'trackport export' pick them up.

The form uses keyboard navigation:
  - Tab/Shift+Tab: Move between fields
  - Enter: Submit
  - Ctrl+C: Cancel`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if !ui.IsTerminal() {
			return errors.New("init needs an interactive terminal")
		}

		a := initAnswers{
			Snapshot:     config.GetString(config.KeySnapshot),
			Project:      config.GetString(config.KeyProject),
			Prefix:       config.GetString(config.KeyPrefix),
			UserMapping:  config.GetString(config.KeyUserMapping),
			Output:       config.GetString(config.KeyOutput),
			OutputFormat: string(config.GetOutputFormat()),
			Estimates:    config.GetBool(config.KeyEstimates),
		}
		confirmed := true
		if err := initForm(&a, &confirmed).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
				return nil
			}
			return fmt.Errorf("form error: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
			return nil
		}
		if err := writeInitConfig(path, a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", ui.RenderPassIcon(), ui.RenderAccent(path))
		return nil
	},
}

func init() {
	initCmd.Flags().String("file", config.FileName, "Config file to write")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func initForm(a *initAnswers, confirmed *bool) *huh.Form {
	formats := []huh.Option[string]{
		huh.NewOption("JSON", string(output.FormatJSON)),
		huh.NewOption("YAML", string(output.FormatYAML)),
		huh.NewOption("TOML", string(output.FormatTOML)),
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot").
				Description("Project snapshot file (.json or .yaml)").
				Placeholder("e.g., website.yaml").
				Value(&a.Snapshot).
				Validate(validateSnapshot),

			huh.NewInput().
				Title("Prefix").
				Description("Short name of the target project").
				Placeholder("e.g., WEB").
				Value(&a.Prefix).
				Validate(validatePrefix),

			huh.NewInput().
				Title("Project").
				Description("Project id (optional, defaults to the snapshot's project)").
				Value(&a.Project),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("User mapping").
				Description("File of email=login lines (optional)").
				Placeholder("e.g., users.txt").
				Value(&a.UserMapping),

			huh.NewInput().
				Title("Output directory").
				Value(&a.Output),

			huh.NewSelect[string]().
				Title("Output format").
				Options(formats...).
				Value(&a.OutputFormat),

			huh.NewConfirm().
				Title("Read [N] hour estimates from task names?").
				Value(&a.Estimates),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config file?").
				Affirmative("Write").
				Negative("Cancel").
				Value(confirmed),
		),
	).WithTheme(huh.ThemeDracula())
}

func validatePrefix(s string) error {
	if !prefixPattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("prefix must be upper-case letters, digits or _ and start with a letter")
	}
	return nil
}

func validateSnapshot(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("snapshot is required")
	}
	return nil
}

// writeInitConfig writes a atomically as YAML.
func writeInitConfig(path string, a initAnswers) error {
	a.Prefix = strings.TrimSpace(a.Prefix)
	if a.Output == "" {
		a.Output = "."
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	return output.WriteFileAtomic(path, data)
}
