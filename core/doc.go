// Package core implements the social integration runtime: the connection
// manager that drives provider authorization flows, the account and
// credential model, and the publish dispatcher that fans one publish
// request out to every requested connected account.
package core
