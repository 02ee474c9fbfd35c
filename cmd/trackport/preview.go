package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/trackport/internal/config"
	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/markup"
	"github.com/steveyegge/trackport/internal/types"
	"github.com/steveyegge/trackport/internal/ui"
)

var previewCmd = &cobra.Command{
	Use:   "preview [FILE|-]",
	Short: "Render a rich-text fragment as converted markdown",
	Long: `Convert one rich-text fragment (a task description or comment body) the
way export does and show the markdown. Entity links are printed with their
original href since no project is loaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0]) // #nosec G304 - path comes from the command line
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			in = f
		}
		fragment, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read fragment: %w", err)
		}

		md := previewMarkdown(string(fragment))
		raw, _ := cmd.Flags().GetBool("raw")
		if !raw {
			md = ui.RenderMarkdown(md)
		}
		if !strings.HasSuffix(md, "\n") {
			md += "\n"
		}
		noPager, _ := cmd.Flags().GetBool("no-pager")
		return ui.ToPager(md, ui.PagerOptions{NoPager: noPager, Out: cmd.OutOrStdout()})
	},
}

func init() {
	previewCmd.Flags().Bool("raw", false, "Print markdown without terminal rendering")
	previewCmd.Flags().Bool("no-pager", false, "Do not pipe output through a pager")
	rootCmd.AddCommand(previewCmd)
}

// previewMarkdown transduces fragment and resolves every reference to its
// href.
func previewMarkdown(fragment string) string {
	tr := markup.Transducer{
		Marker: markup.Marker{
			TypeAttr: config.GetString(config.KeyTypeAttr),
			IDAttr:   config.GetString(config.KeyIDAttr),
		},
		Logger: logger,
	}
	text := tr.Transduce(fragment, func(href, typ, id string) lazytext.Token {
		return types.NewReference(href, typ, id)
	})
	return text.Resolve(lazytext.ResolverFunc(func(e lazytext.Element) string {
		if tok, ok := e.(lazytext.Token); ok {
			return tok.TokenHref()
		}
		return fmt.Sprint(e)
	}))
}
