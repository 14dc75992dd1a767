package sqlstore

import "github.com/goliatone/go-social/core"

var (
	_ core.AccountStore           = (*AccountStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.AuditStore             = (*AuditStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
