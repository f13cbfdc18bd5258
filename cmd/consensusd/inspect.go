package main

import (
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/storage"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read blocks and commits directly out of a node's data directory",
	Long: `Inspect opens a node's bbolt database read-only-in-spirit (through the
same BoltObjectStore a running node uses) without starting consensus or
ingestion, and prints blocks or commits already stored on disk.`,
}

var inspectBlocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List blocks at a given round",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		round, _ := cmd.Flags().GetUint64("round")

		store, err := storage.NewBoltObjectStore(dataDir)
		if err != nil {
			return fmt.Errorf("open object store: %w", err)
		}
		defer store.Close()

		blocks, err := store.BlockStore().ReadBlocksByRound(block.Round(round))
		if err != nil {
			return fmt.Errorf("read blocks at round %d: %w", round, err)
		}
		if len(blocks) == 0 {
			fmt.Printf("no blocks at round %d\n", round)
			return nil
		}
		for _, vb := range blocks {
			ref := vb.Reference()
			fmt.Printf("round=%d author=%d digest=%s timestamp=%s ancestors=%d txns=%d\n",
				ref.Round, ref.Author, ref.Digest, vb.Timestamp().Format("2006-01-02T15:04:05Z07:00"),
				len(vb.Ancestors()), len(vb.Transactions()))
		}
		return nil
	},
}

var inspectCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Print a single commit by index, or the most recent commit if --index is omitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		index, _ := cmd.Flags().GetUint32("index")

		store, err := storage.NewBoltObjectStore(dataDir)
		if err != nil {
			return fmt.Errorf("open object store: %w", err)
		}
		defer store.Close()

		bs := store.BlockStore()

		var tc *block.TrustedCommit
		var found bool
		if index == 0 {
			tc, found, err = bs.LastCommit()
		} else {
			tc, found, err = bs.ReadCommit(block.CommitIndex(index))
		}
		if err != nil {
			return fmt.Errorf("read commit: %w", err)
		}
		if !found {
			fmt.Println("no such commit")
			return nil
		}

		c := tc.Commit()
		fmt.Printf("index=%d digest=%s previous=%s leader=%s blocks=%d\n",
			c.Index(), tc.Digest(), c.PreviousDigest(), c.Leader(), len(c.Blocks()))
		for _, ref := range c.Blocks() {
			fmt.Printf("  %s\n", ref)
		}
		return nil
	},
}

var inspectHeadCmd = &cobra.Command{
	Use:   "head",
	Short: "Print the latest commit's index, digest, and leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := storage.NewBoltObjectStore(dataDir)
		if err != nil {
			return fmt.Errorf("open object store: %w", err)
		}
		defer store.Close()

		bs := store.BlockStore()
		tc, found, err := bs.LastCommit()
		if err != nil {
			return fmt.Errorf("read latest commit: %w", err)
		}
		if !found {
			fmt.Println("no commits yet")
			return nil
		}
		fmt.Printf("latest commit index=%d digest=%s leader=%s\n", tc.Commit().Index(), tc.Digest(), tc.Commit().Leader())
		return nil
	},
}

func init() {
	inspectCmd.PersistentFlags().String("data-dir", "./data", "Directory holding the node's bbolt database")

	inspectBlocksCmd.Flags().Uint64("round", 0, "Round to list blocks for")

	inspectCommitCmd.Flags().Uint32("index", 0, "Commit index to print (0 prints the latest commit)")

	inspectCmd.AddCommand(inspectBlocksCmd)
	inspectCmd.AddCommand(inspectCommitCmd)
	inspectCmd.AddCommand(inspectHeadCmd)
}
