// Package fixture builds the throwaway HTML files handed to the auditor.
//
// A fixture is a uniquely named file under the temp directory holding a
// pre-formed (usually deliberately malformed) HTML string. The content is
// written verbatim and the handle is closed before Build returns, so the
// auditor never observes a partial write.
//
// Each fixture is owned by exactly one pipeline run. The owner calls
// Release once the auditor has read the file.
package fixture
