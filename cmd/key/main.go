package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"school-ride/internal/cli"
)

func main() {
	var (
		userID = flag.String("user-id", "", "Numeric id of the user (subject)")
		role   = flag.String("role", "PARENT", "User role: DRIVER | PARENT | ADMIN")
		secret = flag.String("secret", "", "JWT HMAC secret (HS256)")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --user-id=<id> --role=PARENT --secret='<secret>'")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *userID, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
