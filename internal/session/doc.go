// Package session tracks conversational intake sessions between a submitter
// and the embassy. A session keeps a turn log for auditability and expires
// after a period of inactivity so abandoned conversations do not accumulate.
package session
