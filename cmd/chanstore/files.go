package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Работа с записями о файлах",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать файлы",
	Long:  `Выводит записи о файлах, новые сначала.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		records, serr := c.svc.ListFiles(cmd.Context())
		if serr != nil {
			return fmt.Errorf("не удалось получить список файлов: %w", serr)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Println("Файлов нет.")
			return nil
		}
		for _, rec := range records {
			fmt.Print(formatRecord(rec))
		}
		fmt.Println(faint(fmt.Sprintf("Всего: %d", len(records))))
		return nil
	},
}

var filesRenameCmd = &cobra.Command{
	Use:   "rename <message-id> <new-name>",
	Short: "Переименовать файл",
	Long:  `Меняет имя файла в записи. Сообщение в канале не изменяется.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseMessageID(args[0])
		if err != nil {
			return err
		}

		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		rec, serr := c.svc.Rename(cmd.Context(), id, args[1])
		if serr != nil {
			return fmt.Errorf("не удалось переименовать файл: %w", serr)
		}
		fmt.Println(success(fmt.Sprintf("Файл %d переименован в %s", rec.MessageID, bold(rec.FileName))))
		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <message-id>...",
	Short: "Удалить файлы",
	Long: `Удаляет сообщения из канала и записи о них.
Сообщение, уже отсутствующее в канале, считается удалённым.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseMessageID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if !force {
			fmt.Printf("Удалить файлов: %d? [y/N] ", len(ids))
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Отменено.")
				return nil
			}
		}

		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		result, serr := c.svc.BulkDelete(cmd.Context(), ids)
		if serr != nil {
			return fmt.Errorf("не удалось удалить файлы: %w", serr)
		}

		for _, id := range result.Success {
			fmt.Println(success(fmt.Sprintf("Удалён %d", id)))
		}
		for _, f := range result.Failure {
			fmt.Println(failure(fmt.Sprintf("%d: %s", f.ID, f.Reason)))
		}
		if len(result.Failure) > 0 {
			return fmt.Errorf("не удалено файлов: %d", len(result.Failure))
		}
		return nil
	},
}

func parseMessageID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный message_id: %q", s)
	}
	return id, nil
}

func init() {
	filesListCmd.Flags().Bool("json", false, "вывести записи в JSON")
	filesDeleteCmd.Flags().BoolP("force", "f", false, "не запрашивать подтверждение")

	filesCmd.AddCommand(filesListCmd, filesRenameCmd, filesDeleteCmd)
	rootCmd.AddCommand(filesCmd)
}
