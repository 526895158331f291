package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var manCmd = &cobra.Command{
	Use:    "man",
	Short:  "Generate man pages",
	Long:   `Generate Unix man pages for vulcan's commands.`,
	Hidden: true,
	Example: `  # Generate man pages to docs/man/
  vulcan man

  # Install man pages (requires sudo)
  sudo cp docs/man/* /usr/local/share/man/man1/
  sudo mandb`,
	RunE: runMan,
}

func init() {
	rootCmd.AddCommand(manCmd)
}

func runMan(cmd *cobra.Command, args []string) error {
	header := &doc.GenManHeader{
		Title:   "VULCAN",
		Section: "1",
		Source:  fmt.Sprintf("vulcan %s", version),
		Manual:  "vulcan Manual",
	}

	manDir := "docs/man"
	if err := os.MkdirAll(manDir, 0o755); err != nil {
		return fmt.Errorf("create man directory: %w", err)
	}
	if err := doc.GenManTree(rootCmd, header, manDir); err != nil {
		return fmt.Errorf("generate man pages: %w", err)
	}

	fmt.Printf("Man pages generated in %s/\n", manDir)
	fmt.Println("\nTo install:")
	fmt.Println("  sudo cp docs/man/* /usr/local/share/man/man1/")
	fmt.Println("  sudo mandb")
	return nil
}
