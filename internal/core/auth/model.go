package auth

// Role はユーザーの権限
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User はログイン中のユーザー
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin は管理者かを返す
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Credentials は登録・ログインに使う資格情報
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BasicResponse は /auth 系APIの共通レスポンス
type BasicResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResponse はログインAPIのレスポンス
type LoginResponse struct {
	BasicResponse
	Role Role `json:"role,omitempty"`
}

// UserItem はユーザー一覧の1件
type UserItem struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Status   string `json:"status"` // pending / approved
}

// CurrentUserResponse は現在のユーザー取得APIのレスポンス
type CurrentUserResponse struct {
	Code int    `json:"code"`
	User *User  `json:"user"`
	Msg  string `json:"msg"`
}

type approveRequest struct {
	Username string `json:"username"`
}

type adminChangeRequest struct {
	TargetUsername  string `json:"target_username"`
	CurrentUsername string `json:"current_username"`
}

type pendingUsersResponse struct {
	Pending []string `json:"pending"`
}

type usersResponse struct {
	Users []UserItem `json:"users"`
}
