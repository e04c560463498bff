package repository

import (
	"testing"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		owner   string
		repo    string
	}{
		{
			name:  "https",
			url:   "https://github.com/octocat/hello-world",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:  "https with .git suffix",
			url:   "https://github.com/octocat/hello-world.git",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:  "ssh",
			url:   "git@github.com:octocat/hello-world.git",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:  "trailing slash",
			url:   "https://github.com/octocat/hello-world/",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:  "extra path segments ignored",
			url:   "https://github.com/octocat/hello-world/tree/main",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:  "host case insensitive",
			url:   "https://GitHub.com/octocat/hello-world",
			owner: "octocat",
			repo:  "hello-world",
		},
		{
			name:    "gitlab host rejected",
			url:     "https://gitlab.com/group/project",
			wantErr: true,
		},
		{
			name:    "ssh non-github host rejected",
			url:     "git@gitlab.com:group/project.git",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
		{
			name:    "no scheme",
			url:     "github.com/octocat/hello-world",
			wantErr: true,
		},
		{
			name:    "missing repo",
			url:     "https://github.com/octocat",
			wantErr: true,
		},
		{
			name:    "ssh missing colon",
			url:     "git@github.com/octocat/hello-world",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.Owner != tt.owner {
				t.Errorf("owner = %q, want %q", ref.Owner, tt.owner)
			}
			if ref.Name != tt.repo {
				t.Errorf("name = %q, want %q", ref.Name, tt.repo)
			}
		})
	}
}

func TestRefCanonical(t *testing.T) {
	ref := Ref{Owner: "octocat", Name: "hello-world"}
	want := "https://github.com/octocat/hello-world"
	if got := ref.Canonical(); got != want {
		t.Errorf("Canonical() = %q, want %q", got, want)
	}
}

func TestCanonicalCollapsesSpellings(t *testing.T) {
	urls := []string{
		"https://github.com/octocat/hello-world",
		"https://github.com/octocat/hello-world.git",
		"git@github.com:octocat/hello-world.git",
		"http://github.com/octocat/hello-world/",
	}
	want := "https://github.com/octocat/hello-world"
	for _, u := range urls {
		ref, err := ParseRepoURL(u)
		if err != nil {
			t.Fatalf("ParseRepoURL(%q): %v", u, err)
		}
		if got := ref.Canonical(); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", u, got, want)
		}
	}
}
