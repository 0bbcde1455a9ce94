/*
Package proof implements single-key existence proof commands.
*/
package proof

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"
	"github.com/veritas-l2/hextrie/cli/flags"
	"github.com/veritas-l2/hextrie/cli/options"
	gio "github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/trie"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// NewCommands returns 'proof' command.
func NewCommands() []cli.Command {
	var (
		rootFlag = flags.Uint256Flag{
			Name:  "root, r",
			Usage: "trie root hash the proof binds to",
		}
		keyFlag = cli.StringFlag{
			Name:  "key, k",
			Usage: "hex-encoded key",
		}
	)
	return []cli.Command{{
		Name:  "proof",
		Usage: "extract and check single-key existence proofs",
		Subcommands: []cli.Command{
			{
				Name:      "get",
				Usage:     "extract an existence proof from the node database",
				UsageText: "hextrie proof get --root hash --key hex [--out file] [--config-path path]",
				Description: `Extracts the descent chain of the key from the trie rooted at the given
   hash and writes it as a node dump. Without --out the serialized proof
   nodes are printed as hex, one per line.`,
				Action: getProof,
				Flags: []cli.Flag{
					options.Config, options.ConfigFile,
					rootFlag, keyFlag,
					cli.StringFlag{
						Name:  "out, o",
						Usage: "file to write the proof node dump to",
					},
				},
			},
			{
				Name:      "verify",
				Usage:     "check an existence proof and print the proven value",
				UsageText: "hextrie proof verify --root hash --key hex --in file",
				Action:    verifyProof,
				Flags: []cli.Flag{
					rootFlag, keyFlag,
					cli.StringFlag{
						Name:  "in, i",
						Usage: "file with the proof node dump",
					},
				},
			},
		},
	}}
}

// proofArgs extracts the root hash and the key common to both commands.
func proofArgs(ctx *cli.Context) ([]byte, util.Uint256, error) {
	root := flags.Uint256FromContext(ctx, "root")
	if !root.IsSet {
		return nil, util.Uint256{}, cli.NewExitError("no root hash specified", 1)
	}
	keyHex := ctx.String("key")
	if len(keyHex) == 0 {
		return nil, util.Uint256{}, cli.NewExitError("no key specified", 1)
	}
	key, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, util.Uint256{}, cli.NewExitError(fmt.Errorf("invalid key: %w", err), 1)
	}
	return key, root.Uint256(), nil
}

func getProof(ctx *cli.Context) error {
	key, root, err := proofArgs(ctx)
	if err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	ps, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't open node database: %w", err), 1)
	}
	defer ps.Close()

	tr := trie.NewTrie(root, trie.NewNodeStoreSized(ps, cfg.ApplicationConfiguration.NodeCacheSize))
	proof, err := tr.GetProof(key)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't extract proof: %w", err), 1)
	}

	if out := ctx.String("out"); len(out) != 0 {
		nodes := make([]trie.Node, len(proof))
		for i := range proof {
			var no trie.NodeObject
			r := gio.NewBinReaderFromBuf(proof[i])
			no.DecodeBinary(r)
			if r.Err != nil {
				return cli.NewExitError(fmt.Errorf("can't decode proof node: %w", r.Err), 1)
			}
			nodes[i] = no.Node
		}
		f, err := os.Create(out)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("can't create output file: %w", err), 1)
		}
		defer f.Close()
		if err := trie.SaveNodes(gio.NewBinWriterFromIO(f), nodes); err != nil {
			return cli.NewExitError(fmt.Errorf("can't write proof: %w", err), 1)
		}
		fmt.Fprintf(ctx.App.Writer, "proof with %d nodes written to %s\n", len(nodes), out)
		return nil
	}
	for i := range proof {
		fmt.Fprintf(ctx.App.Writer, "%x\n", proof[i])
	}
	return nil
}

func verifyProof(ctx *cli.Context) error {
	key, root, err := proofArgs(ctx)
	if err != nil {
		return err
	}
	in := ctx.String("in")
	if len(in) == 0 {
		return cli.NewExitError("no input file specified", 1)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read proof: %w", err), 1)
	}
	nodes, err := trie.LoadNodes(gio.NewBinReaderFromBuf(data))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't decode proof: %w", err), 1)
	}
	proof := make([][]byte, len(nodes))
	for i := range nodes {
		proof[i] = nodes[i].Bytes()
	}
	value, ok := trie.VerifyProof(root, key, proof)
	if !ok {
		return cli.NewExitError("proof check failed", 1)
	}
	fmt.Fprintf(ctx.App.Writer, "%x\n", value)
	return nil
}
