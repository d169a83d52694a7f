package domain

// Notification types emitted by the projector.
const (
	NotifyTokenNew     = "token:new"
	NotifyTokenUpdate  = "token:update"
	NotifyTradeNew     = "trade:new"
	NotifyHolderUpdate = "holder:update"
	NotifyPriceUpdate  = "price:update"
)

// Fanout topic name helpers. Platform-wide topics are fixed strings;
// token and wallet topics are derived from addresses.
const (
	TopicPlatformTokens      = "platform:tokens"
	TopicPlatformTrades      = "platform:trades"
	TopicPlatformStats       = "platform:stats"
	TopicPlatformLeaderboard = "platform:leaderboard"
)

// TokenTopic returns the per-token fanout topic.
func TokenTopic(address string) string { return "token:" + address }

// WalletTopic returns the wallet-scoped private channel name. Only
// connections authenticated as the wallet may receive it.
func WalletTopic(wallet string) string { return "wallet:" + wallet }

// Notification is one domain event produced by the projector for
// delivery through the fanout hub. The projector returns notifications
// instead of publishing directly so it stays testable without a live
// socket layer.
type Notification struct {
	Topic     string // destination topic; "wallet:" prefix routes to PublishToWallet
	Type      string // one of the Notify* constants
	Entity    string // address of the entity the event touches, for cache invalidation
	Data      any
	Timestamp int64 // unix ms
}
