package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/qa"
)

var chatVerbose bool

var (
	botPrefix  = color.New(color.FgGreen, color.Bold).Sprint("华佗: ")
	userPrefix = color.New(color.FgCyan, color.Bold).Sprint("用户: ")
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("欢迎使用华佗医疗问答系统！"))
		fmt.Fprintln(out, botPrefix+"我是华佗，希望可以帮到您。")
		fmt.Fprintln(out, color.HiBlackString("输入 'exit' 退出系统"))

		lines := make(chan string)
		go scanLines(cmd.InOrStdin(), lines)

		for {
			fmt.Fprint(out, userPrefix)
			var line string
			var ok bool
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				fmt.Fprintln(out, botPrefix+"再见！祝您身体健康！")
				return nil
			case line, ok = <-lines:
			}
			question := strings.TrimSpace(line)
			if !ok || isExit(question) {
				if !ok {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, botPrefix+"再见！祝您身体健康！")
				return nil
			}
			if question == "" {
				continue
			}

			fmt.Fprint(out, botPrefix+"正在分析您的问题...")
			ans, err := svc.Ask(ctx, question)
			if err != nil {
				fmt.Fprintln(out, color.RedString(" ✗"))
				log.Error("Question failed", "error", err)
				fmt.Fprintln(out, botPrefix+"抱歉，暂时无法回答您的问题，请稍后再试。")
				continue
			}
			fmt.Fprintln(out, color.GreenString(" ✓"))
			if chatVerbose {
				printDetails(out, ans)
			}
			fmt.Fprintln(out, botPrefix+ans.Text)
		}
	},
}

func init() {
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Show grounded entities and ranked candidates")
}

func scanLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("read error: %s", err.Error()))
	}
}

func isExit(s string) bool {
	switch strings.ToLower(s) {
	case "exit", "quit", "退出":
		return true
	}
	return false
}

func printDetails(w io.Writer, ans qa.Answer) {
	dim := color.New(color.FgHiBlack)
	dim.Fprintf(w, "  识别症状: %s\n", joinOrNone(ans.Grounded.Symptom))
	dim.Fprintf(w, "  识别疾病: %s\n", joinOrNone(ans.Grounded.Disease))
	dim.Fprintf(w, "  识别药品: %s\n", joinOrNone(ans.Grounded.Drug))
	for _, c := range ans.Diseases.Ranked {
		dim.Fprintf(w, "  候选疾病: %s (%d)\n", c.Name, c.Count)
	}
	dim.Fprintf(w, "  推荐药品: %s\n", joinOrNone(ans.Drugs))
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "无"
	}
	return strings.Join(s, "、")
}
