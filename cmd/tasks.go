package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetpipe/internal/pipeline"
)

var tasksFormat string

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"ls"},
	Short:   "List tasks and pipelines",
	Long: `List every task and pipeline that "assetpipe run" accepts.

Examples:
  assetpipe tasks              # Table
  assetpipe tasks -o json      # JSON, one object per entry`,
	Args: cobra.NoArgs,
	RunE: runListTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	addFormatFlag(tasksCmd.Flags(), &tasksFormat, "output", "o", "table", "table", "json", "yaml")
}

// taskInfo describes one registry entry.
type taskInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Kind        string   `json:"kind" yaml:"kind"`
	Description string   `json:"description" yaml:"description"`
	Tasks       []string `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

func runListTasks(cmd *cobra.Command, _ []string) error {
	p, _, err := loadProject(cmd, false)
	if err != nil {
		return err
	}

	reg := p.Registry()
	var infos []taskInfo
	for _, name := range reg.Names() {
		r, _ := reg.Get(name)
		infos = append(infos, describe(r))
	}

	return writeTasks(cmd.OutOrStdout(), tasksFormat, infos)
}

func describe(r pipeline.Runnable) taskInfo {
	if t, ok := r.(*pipeline.Task); ok {
		return taskInfo{Name: t.Name(), Kind: "task", Description: t.Description()}
	}

	var names []string
	for _, t := range r.Tasks() {
		names = append(names, t.Name())
	}
	return taskInfo{
		Name:        r.Name(),
		Kind:        "pipeline",
		Description: fmt.Sprintf("Runs %d tasks", len(names)),
		Tasks:       names,
	}
}

func writeTasks(w io.Writer, format string, infos []taskInfo) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	}

	title := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDESCRIPTION")
	for _, info := range infos {
		desc := info.Description
		if len(info.Tasks) > 0 {
			desc = strings.Join(info.Tasks, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, title.String(info.Kind), desc)
	}
	return tw.Flush()
}
