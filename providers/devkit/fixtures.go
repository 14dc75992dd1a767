package devkit

import (
	"net/http"

	"github.com/goliatone/go-social/core"
)

// TestCredential is a throwaway active credential for adapter tests.
func TestCredential(token string) core.ActiveCredential {
	return core.ActiveCredential{
		TokenType:   "bearer",
		AccessToken: token,
	}
}

// GraphPostCreated scripts a Graph API create-post response.
func GraphPostCreated(match string, postID string) Script {
	return JSONScript(match, http.StatusOK, map[string]any{"id": postID})
}

// GraphError scripts a Graph API error envelope.
func GraphError(match string, status int, code int, message string) Script {
	return JSONScript(match, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "OAuthException",
			"code":    code,
		},
	})
}

// GraphIdentity scripts a Graph /me response.
func GraphIdentity(id string, name string) Script {
	return JSONScript("/me", http.StatusOK, map[string]any{
		"id":   id,
		"name": name,
	})
}

// TweetCreated scripts an X create-tweet response.
func TweetCreated(tweetID string) Script {
	return JSONScript("/tweets", http.StatusCreated, map[string]any{
		"data": map[string]any{"id": tweetID},
	})
}

// TweetRejected scripts an X problem-details error.
func TweetRejected(status int, title string, detail string) Script {
	return JSONScript("/tweets", status, map[string]any{
		"title":  title,
		"detail": detail,
		"status": status,
	})
}

// XIdentity scripts an X /users/me response.
func XIdentity(id string, name string, username string) Script {
	return JSONScript("/users/me", http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":       id,
			"name":     name,
			"username": username,
		},
	})
}

// BlueskySession scripts a createSession or getSession response.
func BlueskySession(match string, did string, handle string) Script {
	return JSONScript(match, http.StatusOK, map[string]any{
		"did":        did,
		"handle":     handle,
		"accessJwt":  "access-" + did,
		"refreshJwt": "refresh-" + did,
	})
}

// BlueskyRecordCreated scripts a createRecord response.
func BlueskyRecordCreated(uri string, cid string) Script {
	return JSONScript("createRecord", http.StatusOK, map[string]any{
		"uri": uri,
		"cid": cid,
	})
}

// BlueskyError scripts an XRPC error envelope.
func BlueskyError(match string, status int, code string, message string) Script {
	return JSONScript(match, status, map[string]any{
		"error":   code,
		"message": message,
	})
}

// LinkedInShareCreated scripts a ugcPosts response.
func LinkedInShareCreated(shareID string) Script {
	return JSONScript("/ugcPosts", http.StatusCreated, map[string]any{"id": shareID})
}
