//go:build !unix

package store

import "os"

// sem flock: só o mutex do processo protege o arquivo
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) {}
