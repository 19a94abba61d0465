// Package api implements the HTTP surface of the accounts service.
//
// All handlers read the per-request identity.AuthContext placed by the
// authentication middleware; none of them re-verify credentials. The
// profile endpoints are the only path that creates or removes local
// accounts; authentication itself never does.
package api
