// Package ticket holds the support-ticket and message records and their
// HTTP surface. It is plain data access behind the auth gateway: customers
// see their own tickets, agents and admins see everything.
package ticket
