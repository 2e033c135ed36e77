package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Расхождения журнала загрузок",
	Long: `Загрузки, которые попали в канал, но не были записаны в хранилище.
Каждое расхождение можно принять (adopt) или отбросить (discard).`,
}

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать расхождения",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		entries, serr := c.svc.ListOrphans(cmd.Context())
		if serr != nil {
			return fmt.Errorf("не удалось прочитать журнал: %w", serr)
		}
		if len(entries) == 0 {
			fmt.Println("Расхождений нет.")
			return nil
		}
		for _, e := range entries {
			fmt.Print(formatOrphan(e))
		}
		return nil
	},
}

var orphansAdoptCmd = &cobra.Command{
	Use:   "adopt <tx-id>",
	Short: "Добавить запись для загруженного файла",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		rec, serr := c.svc.AdoptOrphan(cmd.Context(), args[0])
		if serr != nil {
			return fmt.Errorf("не удалось принять загрузку: %w", serr)
		}
		fmt.Println(success(fmt.Sprintf("Запись %d (%s) добавлена", rec.MessageID, bold(rec.FileName))))
		return nil
	},
}

var orphansDiscardCmd = &cobra.Command{
	Use:   "discard <tx-id>",
	Short: "Удалить загруженное сообщение из канала",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if serr := c.svc.DiscardOrphan(cmd.Context(), args[0]); serr != nil {
			return fmt.Errorf("не удалось отбросить загрузку: %w", serr)
		}
		fmt.Println(success(fmt.Sprintf("Загрузка %s отброшена", args[0])))
		return nil
	},
}

func init() {
	orphansCmd.AddCommand(orphansListCmd, orphansAdoptCmd, orphansDiscardCmd)
	rootCmd.AddCommand(orphansCmd)
}
