package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"arforge/internal/clix"
	"arforge/internal/models"
)

var tasksProductID int64

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recorded generation tasks",
	Long:  `Lists the generation tasks recorded in the database, showing their status, progress and produced asset path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}

		tasks, err := appInstance.GenerationService.ListTasks(cmd.Context(), tasksProductID, pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list generation tasks: %w", err)
		}

		if len(tasks) == 0 {
			fmt.Println("No generation tasks found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Task ID", "Product", "Status", "Progress", "Asset Path", "Error", "Created At"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, task := range tasks {
			assetPath := "N/A"
			if task.LocalAssetPath != nil {
				assetPath = *task.LocalAssetPath
			}
			errMsg := ""
			if task.ErrorMessage != nil {
				errMsg = *task.ErrorMessage
			}

			row := []string{
				task.TaskID,
				strconv.FormatInt(task.ProductID, 10),
				colorStatus(task.Status),
				fmt.Sprintf("%d%%", task.Progress),
				assetPath,
				errMsg,
				task.CreatedAt.Format(time.RFC3339),
			}
			table.Append(row)
		}

		table.Render()
		return nil
	},
}

func colorStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusSuccess:
		return color.GreenString(string(status))
	case models.TaskStatusFailed, models.TaskStatusCancelled:
		return color.RedString(string(status))
	case models.TaskStatusTimeout:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().Int64Var(&tasksProductID, "product", 0, "Only show tasks for this product id")
	tasksCmd.Flags().Int("limit", 20, "Maximum number of tasks to show")
	tasksCmd.Flags().Int("offset", 0, "Number of tasks to skip")
}
