// file: model/token.go

package model

// TokenPair is an access/refresh token pair issued on login, register and
// every refresh rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
