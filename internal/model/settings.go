package model

// AppSettings models the per-user row in `app_settings`. Only the fields
// the auth core touches are mapped: the shop name written at user creation
// and the API key hash consulted by the programmatic-access credential
// path. The raw API key is never stored.
type AppSettings struct {
	UserID     string // app_settings.user_id
	ShopName   string // app_settings.shop_name
	APIKeyHash string // app_settings.api_key_hash (empty = no key issued)
}
