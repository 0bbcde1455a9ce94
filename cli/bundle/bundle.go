/*
Package bundle implements claim file commands: replay verification,
inspection and bundle minimization.
*/
package bundle

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"
	gio "github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/trie"
)

// NewCommands returns 'bundle' command.
func NewCommands() []cli.Command {
	var (
		inFlag = cli.StringFlag{
			Name:  "in, i",
			Usage: "file with a saved claim",
		}
		trustFlag = cli.StringFlag{
			Name:  "trust, t",
			Usage: "file with a node dump of material proven in earlier dispute rounds",
		}
	)
	return []cli.Command{{
		Name:  "bundle",
		Usage: "work with saved fraud-proof claims",
		Subcommands: []cli.Command{
			{
				Name:      "verify",
				Usage:     "replay a claim against its bundle and print the verdict",
				UsageText: "hextrie bundle verify --in file [--trust file]",
				Description: `Replays the claim's operation log against a skeleton trie built from the
   attached bundle. Exits with zero status only for an honest claim. Nodes
   proven in earlier dispute rounds can be supplied with --trust, minimized
   bundles don't carry them again.`,
				Action: verifyClaim,
				Flags:  []cli.Flag{inFlag, trustFlag},
			},
			{
				Name:      "inspect",
				Usage:     "print details of a saved claim",
				UsageText: "hextrie bundle inspect --in file [--json]",
				Action:    inspectClaim,
				Flags: []cli.Flag{
					inFlag,
					cli.BoolFlag{
						Name:  "json, j",
						Usage: "print the whole claim as JSON",
					},
				},
			},
			{
				Name:      "minimize",
				Usage:     "shrink a claim's bundle to the minimal replay-preserving set",
				UsageText: "hextrie bundle minimize --in file --out file [--trust file]",
				Description: `Rewrites the claim with the smallest bundle that still replays to the
   same verdict. Material supplied with --trust is treated as already
   proven and dropped from the bundle whenever possible. Note that
   minimization changes the claim ID, the ID covers the bundle.`,
				Action: minimizeClaim,
				Flags: []cli.Flag{
					inFlag,
					cli.StringFlag{
						Name:  "out, o",
						Usage: "file to write the minimized claim to",
					},
					trustFlag,
				},
			},
		},
	}}
}

// readClaim loads a claim from the file written by SaveClaim.
func readClaim(path string) (*trie.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return trie.LoadClaim(gio.NewBinReaderFromBuf(data))
}

// readTrusted loads an optional node dump, an empty path means no
// trusted material.
func readTrusted(path string) ([]trie.Node, error) {
	if len(path) == 0 {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return trie.LoadNodes(gio.NewBinReaderFromBuf(data))
}

func verifyClaim(ctx *cli.Context) error {
	if len(ctx.String("in")) == 0 {
		return cli.NewExitError("no input file specified", 1)
	}
	c, err := readClaim(ctx.String("in"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read claim: %w", err), 1)
	}
	trusted, err := readTrusted(ctx.String("trust"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read trusted nodes: %w", err), 1)
	}
	verdict, vErr := trie.VerifyClaim(c, trusted)
	if vErr != nil {
		fmt.Fprintf(ctx.App.Writer, "claim %s: %s (%v)\n", c.ID().StringLE(), verdict, vErr)
	} else {
		fmt.Fprintf(ctx.App.Writer, "claim %s: %s\n", c.ID().StringLE(), verdict)
	}
	if verdict != trie.VerdictHonest {
		return cli.NewExitError(fmt.Errorf("claim is %s", verdict), 1)
	}
	return nil
}

func inspectClaim(ctx *cli.Context) error {
	if len(ctx.String("in")) == 0 {
		return cli.NewExitError("no input file specified", 1)
	}
	c, err := readClaim(ctx.String("in"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read claim: %w", err), 1)
	}
	if ctx.Bool("json") {
		enc := json.NewEncoder(ctx.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return cli.NewExitError(err, 1)
		}
		return nil
	}
	var gets, puts int
	for i := range c.Ops {
		if c.Ops[i].Kind == trie.OpGet {
			gets++
		} else {
			puts++
		}
	}
	var entryNodes int
	for i := range c.Bundle.Entries {
		entryNodes += len(c.Bundle.Entries[i])
	}
	buf := gio.NewBufBinWriter()
	c.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		return cli.NewExitError(buf.Err, 1)
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "ID:         %s\n", c.ID().StringLE())
	fmt.Fprintf(w, "Pre root:   %s\n", c.PreRoot.StringLE())
	fmt.Fprintf(w, "Post root:  %s\n", c.PostRoot.StringLE())
	fmt.Fprintf(w, "Operations: %d (%d get, %d put)\n", len(c.Ops), gets, puts)
	fmt.Fprintf(w, "Reads:      %d\n", len(c.Bundle.Reads))
	fmt.Fprintf(w, "Pairs:      %d\n", len(c.Bundle.Pairs))
	fmt.Fprintf(w, "Entries:    %d (%d nodes)\n", len(c.Bundle.Entries), entryNodes)
	fmt.Fprintf(w, "Size:       %d bytes\n", len(buf.Bytes()))
	return nil
}

func minimizeClaim(ctx *cli.Context) error {
	if len(ctx.String("in")) == 0 {
		return cli.NewExitError("no input file specified", 1)
	}
	out := ctx.String("out")
	if len(out) == 0 {
		return cli.NewExitError("no output file specified", 1)
	}
	c, err := readClaim(ctx.String("in"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read claim: %w", err), 1)
	}
	trusted, err := readTrusted(ctx.String("trust"))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read trusted nodes: %w", err), 1)
	}
	var oldNodes int
	for i := range c.Bundle.Entries {
		oldNodes += len(c.Bundle.Entries[i])
	}
	oldPairs := len(c.Bundle.Pairs)

	m := trie.MinimizeClaim(c, trusted)
	c.Bundle = *m

	f, err := os.Create(out)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't create output file: %w", err), 1)
	}
	defer f.Close()
	if err := trie.SaveClaim(gio.NewBinWriterFromIO(f), c); err != nil {
		return cli.NewExitError(fmt.Errorf("can't write claim: %w", err), 1)
	}

	var newNodes int
	for i := range c.Bundle.Entries {
		newNodes += len(c.Bundle.Entries[i])
	}
	fmt.Fprintf(ctx.App.Writer, "bundle minimized: %d -> %d proof pairs, %d -> %d entry nodes\n",
		oldPairs, len(c.Bundle.Pairs), oldNodes, newNodes)
	return nil
}
