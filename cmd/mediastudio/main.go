package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/mediastudio/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp はコマンドツリーを組み立てる
func newApp() *cli.Command {
	return &cli.Command{
		Name:  "mediastudio",
		Usage: "メディア処理バックエンド（文字起こし・音声区間検出・BGM分離・顔検索・インタビューRAG）のクライアント",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "環境変数ファイルパス",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "バックエンドのベースURL（省略時は MEDIASTUDIO_API_BASE）",
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			taskCommand(),
			faceCommand(),
			interviewCommand(),
		},
	}
}

func authCommand() *cli.Command {
	credentialFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Usage:    "ユーザー名",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "パスワード",
				Sources:  cli.EnvVars("MEDIASTUDIO_PASSWORD"),
				Required: true,
			},
		}
	}
	adminChangeFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "target",
				Usage:    "対象ユーザー名",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "current",
				Usage:    "操作する管理者のユーザー名",
				Required: true,
			},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "認証・ユーザー管理コマンド",
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "ユーザー登録を申請",
				Flags:  credentialFlags(),
				Action: appcli.AuthRegisterAction,
			},
			{
				Name:   "login",
				Usage:  "ログイン",
				Flags:  credentialFlags(),
				Action: appcli.AuthLoginAction,
			},
			{
				Name:   "whoami",
				Usage:  "現在のユーザーを表示",
				Action: appcli.AuthWhoAmIAction,
			},
			{
				Name:   "pending",
				Usage:  "承認待ちユーザーを表示",
				Action: appcli.AuthPendingAction,
			},
			{
				Name:  "approve",
				Usage: "ユーザーを承認",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Usage:    "承認するユーザー名",
						Required: true,
					},
				},
				Action: appcli.AuthApproveAction,
			},
			{
				Name:   "users",
				Usage:  "ユーザー一覧を表示",
				Action: appcli.AuthUsersAction,
			},
			{
				Name:   "grant-admin",
				Usage:  "管理者権限を付与",
				Flags:  adminChangeFlags(),
				Action: appcli.AuthGrantAdminAction,
			},
			{
				Name:   "revoke-admin",
				Usage:  "管理者権限を剥奪",
				Flags:  adminChangeFlags(),
				Action: appcli.AuthRevokeAdminAction,
			},
		},
	}
}

func taskCommand() *cli.Command {
	idFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "id",
			Usage:    "タスクID",
			Required: true,
		}
	}
	waitFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "ポーリング間隔（省略時は MEDIASTUDIO_POLL_INTERVAL_MS）",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "最大試行回数（省略時は MEDIASTUDIO_POLL_MAX_ATTEMPTS）",
			},
		}
	}
	submitFlags := func(extra ...cli.Flag) []cli.Flag {
		flags := []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "送信する音声・動画ファイル",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "タスクの完了まで待機",
			},
		}
		flags = append(flags, waitFlags()...)
		return append(flags, extra...)
	}

	return &cli.Command{
		Name:  "task",
		Usage: "タスク管理コマンド",
		Commands: []*cli.Command{
			{
				Name:  "transcribe",
				Usage: "文字起こしタスクを作成",
				Flags: submitFlags(
					&cli.StringSliceFlag{Name: "whisper", Usage: "Whisper パラメータ（key=value、複数指定可）"},
					&cli.StringSliceFlag{Name: "vad", Usage: "音声区間検出パラメータ（key=value、複数指定可）"},
					&cli.StringSliceFlag{Name: "bgm", Usage: "BGM分離パラメータ（key=value、複数指定可）"},
					&cli.StringSliceFlag{Name: "diarization", Usage: "話者分離パラメータ（key=value、複数指定可）"},
				),
				Action: appcli.TaskTranscribeAction,
			},
			{
				Name:  "vad",
				Usage: "音声区間検出タスクを作成",
				Flags: submitFlags(
					&cli.StringSliceFlag{Name: "param", Usage: "パラメータ（key=value、複数指定可）"},
				),
				Action: appcli.TaskVADAction,
			},
			{
				Name:  "bgm",
				Usage: "BGM分離タスクを作成",
				Flags: submitFlags(
					&cli.StringSliceFlag{Name: "param", Usage: "パラメータ（key=value、複数指定可）"},
				),
				Action: appcli.TaskBGMAction,
			},
			{
				Name:   "status",
				Usage:  "タスクの状態を表示",
				Flags:  []cli.Flag{idFlag()},
				Action: appcli.TaskStatusAction,
			},
			{
				Name:   "wait",
				Usage:  "タスクの完了まで待機",
				Flags:  append([]cli.Flag{idFlag()}, waitFlags()...),
				Action: appcli.TaskWaitAction,
			},
			{
				Name:  "list",
				Usage: "タスク一覧を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "状態で絞り込み (queued/in_progress/completed/failed)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "タスク種別で絞り込み",
					},
				},
				Action: appcli.TaskListAction,
			},
			{
				Name:   "delete",
				Usage:  "タスクを削除",
				Flags:  []cli.Flag{idFlag()},
				Action: appcli.TaskDeleteAction,
			},
			{
				Name:  "download",
				Usage: "完了したタスクの成果物を保存",
				Flags: []cli.Flag{
					idFlag(),
					&cli.StringFlag{
						Name:  "out",
						Usage: "出力ファイル（省略時は <MEDIASTUDIO_DOWNLOAD_DIR>/<タスクID>.zip）",
					},
				},
				Action: appcli.TaskDownloadAction,
			},
		},
	}
}

func faceCommand() *cli.Command {
	return &cli.Command{
		Name:  "face",
		Usage: "顔検索コマンド",
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "顔画像を登録",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Usage:    "登録する画像（複数指定可）",
						Required: true,
					},
				},
				Action: appcli.FaceIndexAction,
			},
			{
				Name:  "query",
				Usage: "似た顔を検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "検索する画像",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "取得件数（省略時はバックエンドの既定値）",
					},
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "スコアの閾値（省略時はバックエンドの既定値）",
					},
				},
				Action: appcli.FaceQueryAction,
			},
			{
				Name:   "stats",
				Usage:  "顔データベースの統計を表示",
				Action: appcli.FaceStatsAction,
			},
			{
				Name:  "reset",
				Usage: "顔データベースを全削除",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "確認なしで実行",
					},
				},
				Action: appcli.FaceResetAction,
			},
			{
				Name:  "delete",
				Usage: "指定画像の顔レコードを削除",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "path",
						Usage:    "削除する画像パス（複数指定可）",
						Required: true,
					},
				},
				Action: appcli.FaceDeleteAction,
			},
			{
				Name:   "cleanup",
				Usage:  "元画像が存在しないレコードを削除",
				Action: appcli.FaceCleanupAction,
			},
		},
	}
}

func interviewCommand() *cli.Command {
	sessionIDFlag := func(required bool) cli.Flag {
		return &cli.StringFlag{
			Name:     "session-id",
			Usage:    "セッションID",
			Required: required,
		}
	}

	return &cli.Command{
		Name:  "interview",
		Usage: "インタビューRAGコマンド",
		Commands: []*cli.Command{
			{
				Name:  "session",
				Usage: "インタビュー原稿からセッションを作成・更新",
				Flags: []cli.Flag{
					sessionIDFlag(false),
					&cli.BoolFlag{
						Name:  "new-id",
						Usage: "--session-id 未指定時にクライアント側でIDを生成",
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "原稿テキスト",
					},
					&cli.StringSliceFlag{
						Name:  "file",
						Usage: "原稿ファイル（複数指定可）",
					},
				},
				Action: appcli.InterviewSessionAction,
			},
			{
				Name:  "chat",
				Usage: "原稿を根拠に質問（--message 省略時は対話モード）",
				Flags: []cli.Flag{
					sessionIDFlag(false),
					&cli.StringFlag{
						Name:  "message",
						Usage: "質問",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "回答に使うモデル",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "参照するチャンク数",
					},
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "類似度の閾値",
					},
					&cli.StringFlag{
						Name:  "ollama-url",
						Usage: "Ollama のベースURL",
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "参照した原稿の抜粋を表示",
					},
				},
				Action: appcli.InterviewChatAction,
			},
			{
				Name:   "info",
				Usage:  "セッション情報を表示",
				Flags:  []cli.Flag{sessionIDFlag(true)},
				Action: appcli.InterviewInfoAction,
			},
			{
				Name:   "clear",
				Usage:  "セッションを削除",
				Flags:  []cli.Flag{sessionIDFlag(true)},
				Action: appcli.InterviewClearAction,
			},
		},
	}
}
