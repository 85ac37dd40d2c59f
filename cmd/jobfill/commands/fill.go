package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/autofill"
	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
)

// ErrNotFilled is returned when a run filled nothing.
var ErrNotFilled = errors.New("autofill did not complete")

func newFillCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "fill <url>...",
		Short: "Autofill job application pages in a live browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runFill(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
}

type pageResult struct {
	url  string
	resp domain.AutofillResponse
}

func (o *Options) runFill(ctx context.Context, out, errOut io.Writer, urls []string) error {
	a, err := o.session(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	driver, err := o.NewDriver(a.Config.Browser, a.Logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer driver.Close()

	dispatcher := autofill.NewDispatcher(driver, a.Service,
		autofill.WithTimings(a.Config.Browser),
		autofill.WithDispatcherLogger(a.Logger.Named("dispatcher")),
	)

	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionSetDescription("   Filling..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	results := make([]pageResult, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		results = append(results, pageResult{url: u, resp: dispatcher.Trigger(ctx, u)})
		bar.Add(1)
	}
	bar.Finish()

	failed := 0
	for _, r := range results {
		if r.resp.Success {
			green.Fprint(out, "✓ ")
		} else {
			failed++
			red.Fprint(out, "✗ ")
		}
		bold.Fprint(out, r.url)
		fmt.Fprintf(out, "  %s\n", r.resp.Message)
		printCensus(out, r.resp.Diagnostics)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pages: %w", failed, len(urls), ErrNotFilled)
	}
	return nil
}

func printCensus(out io.Writer, c *domain.Census) {
	if c == nil {
		return
	}
	dim.Fprintf(out, "    inputs=%d selects=%d textareas=%d roots=%d\n", c.Inputs, c.Selects, c.Textareas, c.Roots)
}

func newFillHTMLCommand(o *Options) *cobra.Command {
	var output, pageURL string

	cmd := &cobra.Command{
		Use:   "fill-html <file>",
		Short: "Autofill a saved HTML document",
		Long: `Autofill a saved HTML document and write the filled markup.

Frames whose src points at a file next to the document are filled too.
Use - to read the document from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runFillHTML(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], output, pageURL)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the filled document to this file instead of stdout")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL the document was saved from")
	return cmd
}

func (o *Options) runFillHTML(ctx context.Context, in io.Reader, out, errOut io.Writer, path, output, pageURL string) error {
	var (
		data     []byte
		err      error
		resolver dom.FrameResolver
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if pageURL == "" && path != "-" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		pageURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		resolver = fileResolver{dir: filepath.Dir(abs)}
	}

	a, err := o.session(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, filled, err := a.Service.AutofillHTML(ctx, string(data), pageURL, resolver)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Fprintln(out, filled)
	} else if err := os.WriteFile(output, []byte(filled), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	if !resp.Success {
		red.Fprintf(errOut, "✗ %s\n", resp.Message)
		printCensus(errOut, resp.Diagnostics)
		return ErrNotFilled
	}
	green.Fprintf(errOut, "✓ %s\n", resp.Message)
	if output != "" {
		dim.Fprintf(errOut, "  written to %s\n", output)
	}
	a.Logger.Debug("document filled", zap.String("path", path), zap.Int("filled", resp.FilledCount))
	return nil
}

// fileResolver loads file: frames that live under dir.
type fileResolver struct {
	dir string
}

func (f fileResolver) ResolveFrame(src *url.URL) (*dom.Document, error) {
	if src.Scheme != "file" {
		return nil, nil
	}
	path := filepath.FromSlash(src.Path)
	rel, err := filepath.Rel(f.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("frame outside %s", f.dir)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return dom.Parse(file, src.String())
}
