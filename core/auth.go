package core

import "time"

// Binding selects which copy of the SIWE message is authoritative during
// verification.
type Binding string

const (
	// BindingAddress trusts the message embedded in the challenge token;
	// a message supplied by the client is ignored.
	BindingAddress Binding = "address"

	// BindingMessage requires the client to resubmit the message, which must
	// agree with the one embedded in the challenge token.
	BindingMessage Binding = "message"
)

// ChallengeParams are the caller-supplied inputs to challenge issuance.
// All fields are required.
type ChallengeParams struct {
	Address string // Ethereum address of the wallet requesting the challenge
	Domain  string // RFC 4501 authority of the relying party
	URI     string // URI the signature applies to
	ChainID int    // EIP-155 chain ID
}

// Challenge represents an issued authentication challenge. The challenge is
// never stored server side; it travels inside a signed token between the two
// round trips of the flow.
type Challenge struct {
	ID        string    // Unique identifier, consumed on first successful use
	Address   string    // Ethereum address the challenge was issued for
	Nonce     string    // Random nonce embedded in the SIWE message
	Message   string    // Fully prepared SIWE message text
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Team is the tenant a user belongs to, resolved from the request host.
type Team struct {
	ID        string
	Subdomain string
	Name      string
}

// UserRole is the access level assigned to a provisioned user.
type UserRole string

const (
	RoleViewer UserRole = "viewer"
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "admin"
)

// User is the local identity record for an authenticated wallet. Users are
// created lazily on first successful authentication and keyed by the
// synthesized address email within their team.
type User struct {
	ID        string
	TeamID    string
	Email     string // "<lowercased address>@web3.eth"
	Name      string // checksummed wallet address
	Role      UserRole
	Service   string // authentication scheme that created the user
	CreatedAt time.Time
}

// Session represents an authenticated user session.
type Session struct {
	ID            string    // Unique session identifier
	Address       string    // Ethereum address of the user
	UserID        string    // Provisioned user the session belongs to
	TeamID        string    // Team the session was established under
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// SignInResult is what a completed authentication attempt yields.
type SignInResult struct {
	User         *User
	Team         *Team
	IsNewUser    bool
	AccessToken  string
	RefreshToken string
	RedirectURL  string
}
