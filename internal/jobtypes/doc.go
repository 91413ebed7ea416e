/*
Package jobtypes defines the shared vocabulary used across the backend
engine, transactions, and the transaction list: transaction identifiers,
job roles, progress statuses, and exit outcomes.

None of these types carry behavior beyond validation; they exist so that
internal/engine, internal/transaction, and internal/txlist agree on a single
definition instead of each declaring their own string constants.
*/
package jobtypes
