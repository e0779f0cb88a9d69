// Command filelink is the FileLink CLI client.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/pkg/client"
)

// Build-time variables set by ldflags
var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "--version", "-v":
		fmt.Printf("FileLink client %s\n", version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	}

	// ls and register need no argument beyond the credentials.
	minArgs := 5
	if os.Args[1] == "ls" || os.Args[1] == "register" {
		minArgs = 4
	}
	if len(os.Args) < minArgs {
		printUsage()
		os.Exit(1)
	}

	addr := envOr("FILELINK_ADDR", "localhost:9000")
	command, username, password := os.Args[1], os.Args[2], os.Args[3]
	args := os.Args[4:]

	logger := zap.NewNop()
	ctx := context.Background()

	c, err := client.Dial(ctx, addr, logger)
	if err != nil {
		fail(err)
	}
	defer c.Close()

	if command == "register" {
		email := ""
		if len(args) > 0 {
			email = args[0]
		}
		userID, err := c.CreateAccount(username, password, email)
		if err != nil {
			fail(err)
		}
		fmt.Printf("account created: %s\n", userID)
		return
	}

	if err := c.Login(username, password); err != nil {
		fail(err)
	}

	switch command {
	case "ls":
		files, err := c.ListFiles()
		if err != nil {
			fail(err)
		}
		for _, f := range files {
			complete := " "
			if !f.IsComplete {
				complete = "*"
			}
			fmt.Printf("%s%s  %10d  %s\n", complete, f.FileID, f.FileSize, f.FileName)
		}

	case "upload":
		dirID := ""
		if len(args) > 1 {
			dirID = args[1]
		}
		fileID, err := c.UploadFile(args[0], dirID, func(done, total int) {
			fmt.Printf("\ruploading %d/%d chunks", done, total)
		})
		fmt.Println()
		if err != nil {
			fail(err)
		}
		fmt.Printf("uploaded: %s\n", fileID)

	case "download":
		if len(args) < 2 {
			fail(fmt.Errorf("download needs <file-id> <dest>"))
		}
		err := c.DownloadFile(args[0], args[1], func(done, total int) {
			fmt.Printf("\rdownloading %d/%d chunks", done, total)
		})
		fmt.Println()
		if err != nil {
			fail(err)
		}
		fmt.Printf("downloaded to %s\n", args[1])

	case "rm":
		if err := c.DeleteFile(args[0]); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	case "mkdir":
		parent := ""
		if len(args) > 1 {
			parent = args[1]
		}
		dirID, err := c.CreateDirectory(args[0], parent)
		if err != nil {
			fail(err)
		}
		fmt.Printf("created directory: %s\n", dirID)

	case "rmdir":
		if err := c.DeleteDirectory(args[0]); err != nil {
			fail(err)
		}
		fmt.Println("removed directory")

	case "mv":
		target := args[len(args)-1]
		if target == "root" {
			target = ""
		}
		if err := c.MoveFiles(args[:len(args)-1], target); err != nil {
			fail(err)
		}
		fmt.Println("moved")

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := c.Logout(); err != nil {
		// The server closes the connection on logout; nothing to do.
		_ = err
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Printf(`FileLink client v%s

Usage:
  filelink <command> <username> <password> [args]

Commands:
  register <user> <pass> [email]         Create an account
  ls       <user> <pass>                 List files
  upload   <user> <pass> <path> [dir-id] Upload a file
  download <user> <pass> <file-id> <dest>
  rm       <user> <pass> <file-id>       Delete a file
  mkdir    <user> <pass> <name> [parent-id]
  rmdir    <user> <pass> <dir-id>
  mv       <user> <pass> <file-id>... <dir-id|root>
  version                                Show version information

The server address comes from FILELINK_ADDR (default localhost:9000).

`, version)
}
