package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"imgdupes/internal/models"
	"imgdupes/internal/report"
	"imgdupes/internal/storage"
)

var (
	listJSON    bool
	listVerbose bool
	listSummary bool
	listLimit   int
	listOffset  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the duplicate groups of the last saved scan",
	Long: `Display the duplicate groups saved by 'imgdupes scan --save'.

Example:
  imgdupes list              # Show first 10 groups (default)
  imgdupes list -n 0         # Show all groups
  imgdupes list -s           # Summary view (compact)
  imgdupes list --offset 10  # Groups 11-20`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Show detailed image info")
	listCmd.Flags().BoolVarP(&listSummary, "summary", "s", false, "Show summary only (group sizes)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "Limit number of groups to display (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip first N groups (for pagination)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	path, err := expandPath(dbPath)
	if err != nil {
		return fmt.Errorf("invalid --db path: %w", err)
	}
	store, err := storage.NewStorage(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	groups, err := store.GetDuplicateGroups()
	if err != nil {
		return fmt.Errorf("failed to get groups: %w", err)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		if groups == nil {
			groups = []*models.DuplicateGroup{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	last, err := store.LastScan()
	if err != nil {
		return err
	}
	if last != nil {
		fmt.Fprintf(out, "Last scan: %s (%s)\n", last.ScannedAt.Format("2006-01-02 15:04:05"), strings.Join(last.Folders, ", "))
	}

	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicate groups found.")
		fmt.Fprintln(out, "Run 'imgdupes scan --save <folder>...' to scan for duplicates.")
		return nil
	}

	all := &models.ScanResult{Groups: groups}
	fmt.Fprintf(out, "Found %d duplicate groups (%d duplicates)\n\n", len(groups), all.TotalDuplicates())

	// Apply pagination
	totalGroups := len(groups)
	startIdx := listOffset
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx > len(groups) {
		startIdx = len(groups)
	}
	groups = groups[startIdx:]

	if listLimit > 0 && listLimit < len(groups) {
		groups = groups[:listLimit]
	}

	text := report.NewText(out, listVerbose)
	if len(groups) == 0 {
		fmt.Fprintf(out, "No groups in range (offset %d exceeds total %d)\n", listOffset, totalGroups)
	} else if listSummary {
		printSummaryTable(out, groups)
	} else {
		for _, group := range groups {
			if err := text.PrintGroup(group); err != nil {
				return err
			}
		}
	}

	endIdx := startIdx + len(groups)
	if len(groups) > 0 {
		fmt.Fprintf(out, "Showing groups %d-%d of %d\n", startIdx+1, endIdx, totalGroups)
		if endIdx < totalGroups {
			limitArg := ""
			if listLimit > 0 {
				limitArg = fmt.Sprintf(" -n %d", listLimit)
			}
			fmt.Fprintf(out, "Next page: imgdupes list%s --offset %d\n", limitArg, endIdx)
		}
	}

	return nil
}

func printSummaryTable(out io.Writer, groups []*models.DuplicateGroup) {
	fmt.Fprintf(out, "%-8s  %-8s  %-18s  %s\n", "Group", "Images", "Hash", "First image")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for _, group := range groups {
		fmt.Fprintf(out, "#%-7d  %-8d  %-18s  %s\n",
			group.ID, group.Size(), group.Hash, report.ShortenPath(group.Paths[0], 35))
	}
	fmt.Fprintln(out)
}
