package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/mediastudio/internal/core/auth"
)

// AuthRegisterAction はユーザー登録を申請するコマンドのアクション
func AuthRegisterAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.AuthService.Register(ctx, auth.Credentials{
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	})
	if err != nil {
		return fmt.Errorf("ユーザー登録に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", resp.Message)
	return nil
}

// AuthLoginAction はログインしてユーザー情報を表示するコマンドのアクション
func AuthLoginAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if _, err := appCtx.Container.AuthService.Login(ctx, auth.Credentials{
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	}); err != nil {
		return fmt.Errorf("ログインに失敗: %w", err)
	}

	user := appCtx.Container.Session.User().MustGet()
	fmt.Printf("✓ ログインしました: %s (%s)\n", user.Username, user.Role)
	return nil
}

// AuthWhoAmIAction は現在のユーザーを取得して表示するコマンドのアクション
func AuthWhoAmIAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	user, err := appCtx.Container.Session.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}

	renderUserDetail(os.Stdout, user)
	return nil
}

// AuthPendingAction は承認待ちユーザーを表示するコマンドのアクション
func AuthPendingAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	pending, err := appCtx.Container.AuthService.PendingUsers(ctx)
	if err != nil {
		return fmt.Errorf("承認待ちユーザーの取得に失敗: %w", err)
	}

	if len(pending) == 0 {
		fmt.Println("承認待ちのユーザーはいません")
		return nil
	}

	for _, username := range pending {
		fmt.Printf("- %s\n", username)
	}
	return nil
}

// AuthApproveAction はユーザーを承認するコマンドのアクション
func AuthApproveAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.AuthService.ApproveUser(ctx, cmd.String("username"))
	if err != nil {
		return fmt.Errorf("ユーザーの承認に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", resp.Message)
	return nil
}

// AuthUsersAction はユーザー一覧を表示するコマンドのアクション
func AuthUsersAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	users, err := appCtx.Container.AuthService.Users(ctx)
	if err != nil {
		return fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("ユーザーはいません")
		return nil
	}

	renderUsersTable(os.Stdout, users)
	return nil
}

// AuthGrantAdminAction は管理者権限を付与するコマンドのアクション
func AuthGrantAdminAction(ctx context.Context, cmd *cli.Command) error {
	return changeAdmin(ctx, cmd, true)
}

// AuthRevokeAdminAction は管理者権限を剥奪するコマンドのアクション
func AuthRevokeAdminAction(ctx context.Context, cmd *cli.Command) error {
	return changeAdmin(ctx, cmd, false)
}

func changeAdmin(ctx context.Context, cmd *cli.Command, grant bool) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	target := cmd.String("target")
	current := cmd.String("current")

	svc := appCtx.Container.AuthService
	var resp *auth.BasicResponse
	if grant {
		resp, err = svc.GrantAdmin(ctx, target, current)
	} else {
		resp, err = svc.RevokeAdmin(ctx, target, current)
	}
	if err != nil {
		return fmt.Errorf("管理者権限の変更に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", resp.Message)
	return nil
}

// === ヘルパー関数 ===

// renderUserDetail はユーザー情報を表示します
func renderUserDetail(w io.Writer, user auth.User) {
	fmt.Fprintf(w, "\n=== ユーザー情報 ===\n\n")
	fmt.Fprintf(w, "Username:  %s\n", user.Username)
	fmt.Fprintf(w, "Role:      %s\n", user.Role)
	fmt.Fprintf(w, "Admin:     %t\n", user.IsAdmin())
}

// renderUsersTable はテーブル形式でユーザー一覧を表示します
func renderUsersTable(w io.Writer, users []auth.UserItem) {
	table := tablewriter.NewWriter(w)
	table.Header("Username", "Role", "Status")

	for _, u := range users {
		table.Append(u.Username, string(u.Role), u.Status)
	}

	table.Render()
}
