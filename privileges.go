package main

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// sudoUser names the user who invoked sudo in the -user setting.
const sudoUser = "SUDO_USER"

// getOriginalUser gets the user who invoked sudo
func getOriginalUser() (*user.User, error) {
	name := os.Getenv(sudoUser)
	if name == "" {
		return nil, fmt.Errorf("SUDO_USER environment variable not found")
	}
	return user.Lookup(name)
}

func lookupUser(name string) (*user.User, error) {
	if name == sudoUser {
		return getOriginalUser()
	}
	return user.Lookup(name)
}

// dropPrivileges switches the process to the named user. The source and
// destination stay open and usable.
func dropPrivileges(name string) error {
	u, err := lookupUser(name)
	if err != nil {
		return fmt.Errorf("could not get user %s: %v", name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("invalid uid: %v", err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("invalid gid: %v", err)
	}

	if uid == os.Getuid() && gid == os.Getgid() {
		return nil
	}

	if err := syscall.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("could not drop supplementary groups: %v", err)
	}

	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("could not drop group privileges: %v", err)
	}

	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("could not drop user privileges: %v", err)
	}

	return nil
}
