// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package sessions implements the AgroMarket browser session on top of the
gorilla/sessions and gorilla/securecookie libraries.

A session is populated after the client authenticates against the external
identity provider and hands the resulting identity and roles to the server.
It also carries the state of an in progress password reset and any flash
messages that are waiting to be rendered.

Two gorilla session stores are supported. The cookie store keeps the encoded
values in the cookie itself. The SessionStore keeps only the encoded session
ID in the cookie and saves the encoded values to a DB implementation, see the
mysql, leveldb and redis sub packages.

Handlers do not use the gorilla session directly. The Manager loads it,
wraps it in a typed Session with an enumerated key set, and carries it in the
request context.
*/
package sessions
