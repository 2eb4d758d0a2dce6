package models

// User - пользователь API
type User struct {
	ID       int    `json:"id"`
	Login    string `json:"login"`
	Password string `json:"-"` // хеш, наружу не отдается
}

// Credentials - тело запросов регистрации и входа
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
}
